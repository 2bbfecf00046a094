package wallet

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ArgKind enumerates the typed argument kinds a call descriptor accepts.
type ArgKind string

const (
	ArgPureString  ArgKind = "string"
	ArgPureAddress ArgKind = "address"
	ArgPureU64     ArgKind = "u64"
	ArgObject      ArgKind = "object"
)

// Argument is one typed call argument.
type Argument struct {
	Kind ArgKind `json:"kind"`
	Str  string  `json:"string,omitempty"`
	Addr string  `json:"address,omitempty"`
	U64  uint64  `json:"u64,omitempty"`
	Ref  string  `json:"object,omitempty"`
}

// PureString builds a string argument.
func PureString(v string) Argument { return Argument{Kind: ArgPureString, Str: v} }

// PureAddress builds an address argument.
func PureAddress(v string) Argument { return Argument{Kind: ArgPureAddress, Addr: v} }

// PureU64 builds an unsigned 64-bit integer argument.
func PureU64(v uint64) Argument { return Argument{Kind: ArgPureU64, U64: v} }

// ObjectRef builds an owned-object reference argument.
func ObjectRef(id string) Argument { return Argument{Kind: ArgObject, Ref: id} }

// Transaction is an opaque call descriptor: a target plus ordered typed
// arguments. It carries no execution semantics of its own.
type Transaction struct {
	Target string     `json:"target"`
	Args   []Argument `json:"arguments"`
}

// Encode renders the descriptor in its canonical wire form.
func (t Transaction) Encode() ([]byte, error) {
	if strings.TrimSpace(t.Target) == "" {
		return nil, fmt.Errorf("wallet: transaction target is required")
	}
	return json.Marshal(t)
}

// MintTwin describes minting a twin asset from uploaded data.
func MintTwin(packageID, blobID, name, character, tone, bio string) Transaction {
	return Transaction{
		Target: fmt.Sprintf("%s::twin_nft::mint", packageID),
		Args: []Argument{
			PureString(blobID),
			PureString(name),
			PureString(character),
			PureString(tone),
			PureString(bio),
		},
	}
}

// TransferTwin describes transferring a twin asset to another address.
func TransferTwin(packageID, assetID, recipient string) Transaction {
	return Transaction{
		Target: fmt.Sprintf("%s::twin_nft::transfer", packageID),
		Args: []Argument{
			ObjectRef(assetID),
			PureAddress(recipient),
		},
	}
}

// ListOnMarketplace describes listing a twin asset at a price in credits.
func ListOnMarketplace(packageID, assetID string, price uint64) Transaction {
	return Transaction{
		Target: fmt.Sprintf("%s::marketplace::list", packageID),
		Args: []Argument{
			ObjectRef(assetID),
			PureU64(price),
		},
	}
}

// BuyFromMarketplace describes buying a listed twin with a payment object.
func BuyFromMarketplace(packageID, listingID, paymentRef string) Transaction {
	return Transaction{
		Target: fmt.Sprintf("%s::marketplace::buy", packageID),
		Args: []Argument{
			ObjectRef(listingID),
			ObjectRef(paymentRef),
		},
	}
}

// UpdateTwinMetadata describes rewriting a twin asset's display metadata.
func UpdateTwinMetadata(packageID, assetID, name, bio string) Transaction {
	return Transaction{
		Target: fmt.Sprintf("%s::twin_nft::update_metadata", packageID),
		Args: []Argument{
			ObjectRef(assetID),
			PureString(name),
			PureString(bio),
		},
	}
}
