package byte4

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selector returns the first four bytes of keccak256 of a canonical signature such as
// "transfer(address,uint256)".
func Selector(signature string) [4]byte {
	var s [4]byte
	copy(s[:], crypto.Keccak256([]byte(signature))[:4])
	return s
}

// MethodSignature rebuilds the canonical signature of an ABI method from its inputs.
func MethodSignature(method abi.Method) string {
	types := make([]string, 0, len(method.Inputs))
	for _, input := range method.Inputs {
		types = append(types, input.Type.String())
	}
	return fmt.Sprintf("%v(%v)", method.RawName, strings.Join(types, ","))
}

type entry struct {
	contract string
	method   abi.Method
}

// Lookup resolves calldata selectors against a fixed set of named contract ABIs.
type Lookup struct {
	entries map[[4]byte]entry
}

func NewLookup(abis map[string]*abi.ABI) *Lookup {
	l := &Lookup{entries: map[[4]byte]entry{}}

	// sorted so a selector shared by two contracts always resolves to the same one
	names := make([]string, 0, len(abis))
	for name := range abis {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, method := range abis[name].Methods {
			sel := Selector(MethodSignature(method))
			if _, taken := l.entries[sel]; !taken {
				l.entries[sel] = entry{contract: name, method: method}
			}
		}
	}
	return l
}

// GetMethodFromCalldata returns the contract name and ABI method for a 4-byte selector or full calldata.
func (l *Lookup) GetMethodFromCalldata(calldata []byte) (string, *abi.Method, error) {
	if len(calldata) < 4 {
		return "", nil, fmt.Errorf("invalid selector length: %d", len(calldata))
	}

	var sel [4]byte
	copy(sel[:], calldata[:4])
	e, ok := l.entries[sel]
	if !ok {
		return "", nil, fmt.Errorf("no matching method found for selector: 0x%x", sel)
	}
	return e.contract, &e.method, nil
}
