// Package ledger anchors completed check-ins on chain. Every call is a
// fire-and-forget side channel: time-bounded, fallible, and never on
// the critical path of a check-in.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// attendanceABI covers the single function the anchor contract exposes.
const attendanceABI = `[{"inputs":[{"internalType":"bytes32","name":"eventId","type":"bytes32"},{"internalType":"bytes32","name":"participantId","type":"bytes32"},{"internalType":"uint64","name":"checkedInAt","type":"uint64"}],"name":"recordCheckIn","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

type Client struct {
	client   *ethclient.Client
	abi      abi.ABI
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	timeout  time.Duration
}

func Dial(rpcURL, contractAddr, privateKeyHex string, chainID int64, timeout time.Duration) (*Client, error) {
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger node: %w", err)
	}
	parsedABI, err := abi.JSON(strings.NewReader(attendanceABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse attendance ABI: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger key: %w", err)
	}
	return &Client{
		client:   ethClient,
		abi:      parsedABI,
		contract: common.HexToAddress(contractAddr),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
		timeout:  timeout,
	}, nil
}

func (c *Client) Close() {
	c.client.Close()
}

// AnchorCheckIn submits a recordCheckIn transaction. Identifiers are
// hashed before leaving the process so no participant data goes on
// chain.
func (c *Client) AnchorCheckIn(ctx context.Context, eventID, participantID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	callData, err := c.abi.Pack("recordCheckIn",
		sha256.Sum256([]byte(eventID)),
		sha256.Sum256([]byte(participantID)),
		uint64(at.Unix()),
	)
	if err != nil {
		return fmt.Errorf("failed to pack recordCheckIn: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), 120_000, gasPrice, callData)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return fmt.Errorf("failed to sign anchor tx: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("failed to send anchor tx: %w", err)
	}
	return nil
}
