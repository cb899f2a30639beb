package ethereum

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrUnknownFunction = errors.New("unknown contract function")
	ErrNotReadOnly     = errors.New("contract function is not read-only")
	ErrArgumentCount   = errors.New("wrong number of contract arguments")
)

// ERC20ABI is the subset of the ERC-20 interface the client knows how to call.
const ERC20ABI = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"_owner","type":"address"}],"outputs":[{"name":"balance","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// CallDescriptor describes one callable contract function: its parameter and
// return types as declared in the ABI.
type CallDescriptor struct {
	Name     string
	Inputs   abi.Arguments
	Outputs  abi.Arguments
	ReadOnly bool
}

// Signature renders the descriptor as name(type,...) returns (type,...).
func (d CallDescriptor) Signature() string {
	return fmt.Sprintf("%s(%s) returns (%s)", d.Name, typeList(d.Inputs), typeList(d.Outputs))
}

func typeList(args abi.Arguments) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Type.String()
	}
	return strings.Join(parts, ",")
}

// ContractInterface maps function names of a known ABI to typed call
// descriptors. Calls are validated against it before anything is sent.
type ContractInterface struct {
	abi   abi.ABI
	calls map[string]CallDescriptor
}

func NewContractInterface(abiJSON string) (*ContractInterface, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	calls := make(map[string]CallDescriptor, len(parsed.Methods))
	for name, method := range parsed.Methods {
		calls[name] = CallDescriptor{
			Name:     name,
			Inputs:   method.Inputs,
			Outputs:  method.Outputs,
			ReadOnly: method.IsConstant(),
		}
	}
	return &ContractInterface{abi: parsed, calls: calls}, nil
}

// Descriptor returns the descriptor for a read-only function.
func (ci *ContractInterface) Descriptor(name string) (CallDescriptor, error) {
	d, ok := ci.calls[name]
	if !ok {
		return CallDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if !d.ReadOnly {
		return CallDescriptor{}, fmt.Errorf("%w: %s", ErrNotReadOnly, name)
	}
	return d, nil
}

// Functions lists the read-only function signatures, sorted by name.
func (ci *ContractInterface) Functions() []string {
	var out []string
	for _, d := range ci.calls {
		if d.ReadOnly {
			out = append(out, d.Signature())
		}
	}
	sort.Strings(out)
	return out
}

// Pack converts string arguments to the declared ABI types and encodes the
// call data.
func (ci *ContractInterface) Pack(name string, args ...string) ([]byte, error) {
	d, err := ci.Descriptor(name)
	if err != nil {
		return nil, err
	}
	if len(args) != len(d.Inputs) {
		return nil, fmt.Errorf("%w: %s expects %d, got %d", ErrArgumentCount, d.Signature(), len(d.Inputs), len(args))
	}

	values := make([]any, len(args))
	for i, in := range d.Inputs {
		v, err := parseArg(in.Type, strings.TrimSpace(args[i]))
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, name, err)
		}
		values[i] = v
	}

	data, err := ci.abi.Pack(name, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", name, err)
	}
	return data, nil
}

func (ci *ContractInterface) Unpack(name string, data []byte) ([]any, error) {
	if _, err := ci.Descriptor(name); err != nil {
		return nil, err
	}
	out, err := ci.abi.Unpack(name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", name, err)
	}
	return out, nil
}

func parseArg(t abi.Type, s string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, s)
		}
		return common.HexToAddress(s), nil
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		return s, nil
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.UintTy, abi.IntTy:
		return parseInteger(t, s)
	default:
		return nil, fmt.Errorf("unsupported argument type %s", t.String())
	}
}

func parseInteger(t abi.Type, s string) (any, error) {
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid %s value %q", t.String(), s)
	}
	unsigned := t.T == abi.UintTy
	if unsigned && n.Sign() < 0 {
		return nil, fmt.Errorf("negative value for %s", t.String())
	}
	// go-ethereum only maps 8, 16, 32 and 64 bit integers to native Go types.
	switch t.Size {
	case 8, 16, 32, 64:
	default:
		if unsigned && n.BitLen() > t.Size {
			return nil, fmt.Errorf("value %s overflows %s", s, t.String())
		}
		return n, nil
	}
	if unsigned {
		if !n.IsUint64() || n.BitLen() > t.Size {
			return nil, fmt.Errorf("value %s overflows %s", s, t.String())
		}
		v := n.Uint64()
		switch t.Size {
		case 8:
			return uint8(v), nil
		case 16:
			return uint16(v), nil
		case 32:
			return uint32(v), nil
		default:
			return v, nil
		}
	}
	if !n.IsInt64() {
		return nil, fmt.Errorf("value %s overflows %s", s, t.String())
	}
	v := n.Int64()
	lim := int64(1) << (t.Size - 1)
	if t.Size < 64 && (v < -lim || v >= lim) {
		return nil, fmt.Errorf("value %s overflows %s", s, t.String())
	}
	switch t.Size {
	case 8:
		return int8(v), nil
	case 16:
		return int16(v), nil
	case 32:
		return int32(v), nil
	default:
		return v, nil
	}
}
