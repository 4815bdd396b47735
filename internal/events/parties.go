package events

import "github.com/ethereum/go-ethereum/common"

// partyKeys are the payload fields that name an account involved in an event.
var partyKeys = []string{"seller", "buyer", "bidder", "outbid", "winner", "owner", "to", "actor"}

// Parties returns the distinct non-zero addresses an event payload names,
// in partyKeys order.
func Parties(event Event) []common.Address {
	seen := make(map[common.Address]bool)
	var out []common.Address
	for _, key := range partyKeys {
		s, _ := event.Payload[key].(string)
		if !common.IsHexAddress(s) {
			continue
		}
		addr := common.HexToAddress(s)
		if addr == (common.Address{}) || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}
