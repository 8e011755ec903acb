package bucket

import "fmt"

// OwnerKind identifies which entity a bucket belongs to.
type OwnerKind int

const (
	OwnerNone OwnerKind = iota
	OwnerCharacter
	OwnerAccount
	OwnerNPC
	OwnerBot
	OwnerZone
)

// String returns the column-style name of the kind.
func (k OwnerKind) String() string {
	switch k {
	case OwnerNone:
		return "global"
	case OwnerCharacter:
		return "character"
	case OwnerAccount:
		return "account"
	case OwnerNPC:
		return "npc"
	case OwnerBot:
		return "bot"
	case OwnerZone:
		return "zone"
	default:
		return fmt.Sprintf("OwnerKind(%d)", int(k))
	}
}

// Column returns the data_buckets column holding the owner id for this kind.
// OwnerNone has no column.
func (k OwnerKind) Column() string {
	switch k {
	case OwnerCharacter:
		return "character_id"
	case OwnerAccount:
		return "account_id"
	case OwnerNPC:
		return "npc_id"
	case OwnerBot:
		return "bot_id"
	case OwnerZone:
		return "zone_id"
	default:
		return ""
	}
}

// Owner is the single ownership scope of a bucket.
// InstanceID is only meaningful for OwnerZone.
type Owner struct {
	Kind       OwnerKind
	ID         uint32
	InstanceID uint32
}

// Global is the unscoped owner.
var Global = Owner{}

// Character returns a character-scoped owner.
func Character(id uint32) Owner { return Owner{Kind: OwnerCharacter, ID: id} }

// Account returns an account-scoped owner.
func Account(id uint32) Owner { return Owner{Kind: OwnerAccount, ID: id} }

// NPC returns an npc-scoped owner.
func NPC(id uint32) Owner { return Owner{Kind: OwnerNPC, ID: id} }

// Bot returns a bot-scoped owner.
func Bot(id uint32) Owner { return Owner{Kind: OwnerBot, ID: id} }

// Zone returns a zone+instance scoped owner.
func Zone(zoneID, instanceID uint32) Owner {
	return Owner{Kind: OwnerZone, ID: zoneID, InstanceID: instanceID}
}

// resolveOwner applies the precedence character > account > npc > bot > zone.
// A zone scope needs a non-zero zone id; the instance id may be zero.
func resolveOwner(characterID, accountID, npcID, botID, zoneID, instanceID uint32) Owner {
	switch {
	case characterID > 0:
		return Character(characterID)
	case accountID > 0:
		return Account(accountID)
	case npcID > 0:
		return NPC(npcID)
	case botID > 0:
		return Bot(botID)
	case zoneID > 0:
		return Zone(zoneID, instanceID)
	default:
		return Global
	}
}

// Cacheable reports whether records of this owner may live in the process cache.
// NPC archetypes are active in many zones at once and global records are
// shared by every process, so neither is cached.
func (o Owner) Cacheable() bool {
	switch o.Kind {
	case OwnerCharacter, OwnerAccount, OwnerBot, OwnerZone:
		return true
	default:
		return false
	}
}

// fields flattens the owner into the six ownership columns, in schema order.
func (o Owner) fields() (characterID, accountID, npcID, botID, zoneID, instanceID uint32) {
	switch o.Kind {
	case OwnerCharacter:
		characterID = o.ID
	case OwnerAccount:
		accountID = o.ID
	case OwnerNPC:
		npcID = o.ID
	case OwnerBot:
		botID = o.ID
	case OwnerZone:
		zoneID = o.ID
		instanceID = o.InstanceID
	}
	return
}

func (o Owner) String() string {
	switch o.Kind {
	case OwnerNone:
		return "global"
	case OwnerZone:
		return fmt.Sprintf("zone:%d:%d", o.ID, o.InstanceID)
	default:
		return fmt.Sprintf("%s:%d", o.Kind, o.ID)
	}
}
