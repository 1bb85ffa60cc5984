package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/arbguard/internal/erc20"
)

// fakeBackend is an in-memory app.Backend.
type fakeBackend struct {
	mu sync.Mutex

	gasPrice    *big.Int
	gasErr      error
	gasCalls    int
	native      map[common.Address]*big.Int
	tokens      map[common.Address]map[common.Address]*big.Int
	allowances  map[[2]common.Address]*big.Int
	callErr     error
	sendErr     error
	sent        []*types.Transaction
	receipts    map[common.Hash]*types.Receipt
	head        *types.Header
	headErr     error
	nonce       uint64
	estimateGas uint64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		gasPrice:   big.NewInt(20e9),
		native:     map[common.Address]*big.Int{},
		tokens:     map[common.Address]map[common.Address]*big.Int{},
		allowances: map[[2]common.Address]*big.Int{},
		receipts:   map[common.Hash]*types.Receipt{},
	}
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gasCalls++
	return f.gasPrice, f.gasErr
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.callErr != nil {
		return 0, f.callErr
	}
	return f.estimateGas, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	method, err := erc20.ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	var v *big.Int
	switch method.Name {
	case "balanceOf":
		v = f.tokens[*msg.To][args[0].(common.Address)]
	case "allowance":
		v = f.allowances[[2]common.Address{args[0].(common.Address), args[1].(common.Address)}]
	default:
		return nil, errors.New("unsupported method " + method.Name)
	}
	if v == nil {
		v = new(big.Int)
	}
	return method.Outputs.Pack(v)
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeBackend) BalanceAt(_ context.Context, a common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.native[a]; ok {
		return v, nil
	}
	return new(big.Int), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) setHead(n int64) {
	f.mu.Lock()
	f.head = &types.Header{Number: big.NewInt(n), Time: uint64(1700000000 + n*12)}
	f.mu.Unlock()
}

func ethereumCallMsg() ethereum.CallMsg {
	to := common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	return ethereum.CallMsg{To: &to, Data: []byte{0x38, 0xed, 0x17, 0x39}}
}
