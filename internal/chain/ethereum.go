package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/domain"
)

// ERC-721 / ERC-20 method selectors, keccak256(signature)[:4]. transferFrom
// shares one selector: the ERC-721 and ERC-20 signatures are identical.
var (
	selOwnerOf          = selector("ownerOf(uint256)")
	selGetApproved      = selector("getApproved(uint256)")
	selIsApprovedForAll = selector("isApprovedForAll(address,address)")
	selTransferFrom     = selector("transferFrom(address,address,uint256)")
	selBalanceOf        = selector("balanceOf(address)")
	selAllowance        = selector("allowance(address,address)")
	selTransfer         = selector("transfer(address,uint256)")
)

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// EthereumClient is the shared EVM node handle. Reads go through eth_call;
// writes are signed with the operator key and waited to inclusion, checking
// the receipt status. The operator account doubles as the marketplace
// custody account for native settlement.
//
// The AssetRegistry, TokenLedger and Bank capabilities are exposed through
// the Assets, Tokens and Bank facets, which share this handle.
type EthereumClient struct {
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	operator common.Address
	chainID  *big.Int
	logger   zerolog.Logger
}

// NewEthereumClient dials the node and derives the operator identity from the
// given hex-encoded private key.
func NewEthereumClient(ctx context.Context, rpcURL, operatorKeyHex string, logger zerolog.Logger) (*EthereumClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum node: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chain id: %w", err)
	}

	operator := crypto.PubkeyToAddress(key.PublicKey)
	logger.Info().
		Str("operator", operator.Hex()).
		Str("chain_id", chainID.String()).
		Msg("Connected to ethereum node")

	return &EthereumClient{
		client:   client,
		key:      key,
		operator: operator,
		chainID:  chainID,
		logger:   logger,
	}, nil
}

// Operator returns the marketplace operator identity. Asset owners grant
// transfer approval to this address, and token buyers grant it allowance.
func (c *EthereumClient) Operator() domain.Address {
	return domain.Address(strings.ToLower(c.operator.Hex()))
}

// Close releases the underlying RPC connection.
func (c *EthereumClient) Close() {
	c.client.Close()
}

// Assets returns the AssetRegistry facet.
func (c *EthereumClient) Assets() *AssetClient {
	return &AssetClient{c: c}
}

// Tokens returns the TokenLedger facet.
func (c *EthereumClient) Tokens() *TokenClient {
	return &TokenClient{c: c}
}

// Bank returns the native-settlement facet.
func (c *EthereumClient) Bank() *BankClient {
	return &BankClient{c: c}
}

// AssetClient talks to ERC-721 collections.
type AssetClient struct {
	c *EthereumClient
}

var _ AssetRegistry = (*AssetClient)(nil)

// OwnerOf returns the current owner of the asset.
func (a *AssetClient) OwnerOf(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (domain.Address, error) {
	out, err := a.c.call(ctx, collection, pack(selOwnerOf, uintArg(tokenID)))
	if err != nil {
		return "", fmt.Errorf("ownerOf: %w", err)
	}
	return addressResult(out)
}

// GetApproved returns the single approved operator for the asset, if any.
func (a *AssetClient) GetApproved(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (domain.Address, error) {
	out, err := a.c.call(ctx, collection, pack(selGetApproved, uintArg(tokenID)))
	if err != nil {
		return "", fmt.Errorf("getApproved: %w", err)
	}
	return addressResult(out)
}

// IsApprovedForAll reports whether operator may move every asset of owner in
// the collection.
func (a *AssetClient) IsApprovedForAll(ctx context.Context, collection, owner, operator domain.Address) (bool, error) {
	out, err := a.c.call(ctx, collection, pack(selIsApprovedForAll, addrArg(owner), addrArg(operator)))
	if err != nil {
		return false, fmt.Errorf("isApprovedForAll: %w", err)
	}
	return boolResult(out)
}

// TransferFrom moves the asset between owners using the operator's approval.
func (a *AssetClient) TransferFrom(ctx context.Context, collection, from, to domain.Address, tokenID decimal.Decimal) error {
	data := pack(selTransferFrom, addrArg(from), addrArg(to), uintArg(tokenID))
	if err := a.c.send(ctx, collection, nil, data); err != nil {
		return fmt.Errorf("asset transferFrom: %w", err)
	}
	return nil
}

// TokenClient talks to ERC-20 currencies.
type TokenClient struct {
	c *EthereumClient
}

var _ TokenLedger = (*TokenClient)(nil)

// BalanceOf returns the token balance of account in the given currency.
func (t *TokenClient) BalanceOf(ctx context.Context, currency, account domain.Address) (decimal.Decimal, error) {
	out, err := t.c.call(ctx, currency, pack(selBalanceOf, addrArg(account)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf: %w", err)
	}
	return uintResult(out)
}

// Allowance returns the amount spender may draw from owner.
func (t *TokenClient) Allowance(ctx context.Context, currency, owner, spender domain.Address) (decimal.Decimal, error) {
	out, err := t.c.call(ctx, currency, pack(selAllowance, addrArg(owner), addrArg(spender)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("allowance: %w", err)
	}
	return uintResult(out)
}

// TransferFrom draws amount from the owner's pre-authorized allowance.
func (t *TokenClient) TransferFrom(ctx context.Context, currency, from, to domain.Address, amount decimal.Decimal) error {
	data := pack(selTransferFrom, addrArg(from), addrArg(to), uintArg(amount))
	if err := t.c.send(ctx, currency, nil, data); err != nil {
		return fmt.Errorf("token transferFrom: %w", err)
	}
	return nil
}

// Transfer spends the operator's own token balance.
func (t *TokenClient) Transfer(ctx context.Context, currency, to domain.Address, amount decimal.Decimal) error {
	data := pack(selTransfer, addrArg(to), uintArg(amount))
	if err := t.c.send(ctx, currency, nil, data); err != nil {
		return fmt.Errorf("token transfer: %w", err)
	}
	return nil
}

// BankClient pays out native currency from the custody account.
type BankClient struct {
	c *EthereumClient
}

var _ Bank = (*BankClient)(nil)

// Transfer sends amount of native currency to the recipient.
func (b *BankClient) Transfer(ctx context.Context, to domain.Address, amount decimal.Decimal) error {
	if err := b.c.send(ctx, to, amount.BigInt(), nil); err != nil {
		return fmt.Errorf("native transfer: %w", err)
	}
	return nil
}

func (c *EthereumClient) call(ctx context.Context, to domain.Address, data []byte) ([]byte, error) {
	target := common.HexToAddress(string(to))
	msg := ethereum.CallMsg{From: c.operator, To: &target, Data: data}
	return c.client.CallContract(ctx, msg, nil)
}

func (c *EthereumClient) send(ctx context.Context, to domain.Address, value *big.Int, data []byte) error {
	target := common.HexToAddress(string(to))
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.operator)
	if err != nil {
		return fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}
	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.operator,
		To:       &target,
		Value:    value,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &target,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.client, signed)
	if err != nil {
		return fmt.Errorf("wait mined %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", signed.Hash().Hex())
	}

	c.logger.Debug().
		Str("tx", signed.Hash().Hex()).
		Str("to", target.Hex()).
		Msg("Transaction mined")
	return nil
}

// pack concatenates a method selector with 32-byte encoded arguments.
func pack(sel []byte, args ...[]byte) []byte {
	data := make([]byte, 0, len(sel)+32*len(args))
	data = append(data, sel...)
	for _, arg := range args {
		data = append(data, arg...)
	}
	return data
}

func addrArg(a domain.Address) []byte {
	return common.LeftPadBytes(common.HexToAddress(string(a)).Bytes(), 32)
}

func uintArg(d decimal.Decimal) []byte {
	return common.LeftPadBytes(d.BigInt().Bytes(), 32)
}

func addressResult(out []byte) (domain.Address, error) {
	if len(out) < 32 {
		return "", fmt.Errorf("short call result: %d bytes", len(out))
	}
	return domain.Address(strings.ToLower(common.BytesToAddress(out[:32]).Hex())), nil
}

func boolResult(out []byte) (bool, error) {
	if len(out) < 32 {
		return false, fmt.Errorf("short call result: %d bytes", len(out))
	}
	return out[31] != 0, nil
}

func uintResult(out []byte) (decimal.Decimal, error) {
	if len(out) < 32 {
		return decimal.Zero, fmt.Errorf("short call result: %d bytes", len(out))
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(out[:32]), 0), nil
}
