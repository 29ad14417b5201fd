// Package launch creates tokens through the external launch service and
// lands the resulting transaction on the ledger.
package launch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/ashureev/mention-launcher/internal/domain"
	"github.com/ashureev/mention-launcher/internal/media"
	"github.com/ashureev/mention-launcher/internal/wallet"
)

const (
	// DefaultDevBuy is the SOL amount bought by the creator at launch.
	DefaultDevBuy = "0.01"

	uploadContentType = "image/png"
	maxResponseBytes  = 1 << 20 // 1MB
)

var (
	// ErrInvalidRequest is returned when name or ticker is missing.
	ErrInvalidRequest = errors.New("name and ticker are required")
	// ErrMetadataUpload wraps failures talking to the metadata host.
	ErrMetadataUpload = errors.New("metadata upload failed")
	// ErrCreateTransaction wraps failures obtaining the creation transaction.
	ErrCreateTransaction = errors.New("create transaction failed")
	// ErrSign wraps failures signing the creation transaction.
	ErrSign = errors.New("sign transaction failed")
	// ErrSubmit wraps ledger submission failures.
	ErrSubmit = errors.New("submit transaction failed")
	// ErrConfirm wraps ledger confirmation failures.
	ErrConfirm = errors.New("confirm transaction failed")
)

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*media.Image, error)
}

// Config holds launch service endpoints and fixed trade parameters.
type Config struct {
	MetadataURL    string
	LaunchURL      string
	PriorityFee    decimal.Decimal
	Slippage       int
	RequestTimeout time.Duration
}

// Request describes the token to create.
type Request struct {
	Name        string
	Ticker      string
	Description string
	SocialLink  string
	Website     string
	Image       *media.Image
	ImageURL    string
}

// Client orchestrates metadata upload, transaction creation, signing and submission.
type Client struct {
	cfg     Config
	http    *http.Client
	wallet  *wallet.Wallet
	ledger  Ledger
	images  ImageFetcher
	newMint func() (solana.PrivateKey, error)
	logger  *slog.Logger
}

// NewClient creates a launch client. images is used only when a request
// names an ImageURL without carrying image bytes.
func NewClient(cfg Config, w *wallet.Wallet, ledger Ledger, images ImageFetcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		wallet:  w,
		ledger:  ledger,
		images:  images,
		newMint: solana.NewRandomPrivateKey,
		logger:  logger,
	}
}

// WithHTTPClient overrides the client used for the metadata and launch services.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// CreateToken runs one launch attempt. It never returns an error or panics;
// every failure becomes an unsuccessful outcome.
func (c *Client) CreateToken(ctx context.Context, req Request, devBuy decimal.Decimal) (out domain.LaunchOutcome) {
	attemptID := uuid.NewString()
	log := c.logger.With("attempt_id", attemptID, "name", req.Name, "ticker", req.Ticker)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Launch attempt panicked", "panic", r)
			out = domain.LaunchFailed(fmt.Sprintf("internal error: %v", r))
		}
	}()

	mint, sig, err := c.createToken(ctx, log, req, devBuy)
	if err != nil {
		log.Error("Launch attempt failed", "error", err)
		return domain.LaunchFailed(err.Error())
	}

	log.Info("Token launched", "mint", mint.String(), "signature", sig.String())
	return domain.LaunchSucceeded(mint.String(), sig.String())
}

func (c *Client) createToken(ctx context.Context, log *slog.Logger, req Request, devBuy decimal.Decimal) (solana.PublicKey, solana.Signature, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Ticker = strings.TrimSpace(req.Ticker)
	if req.Name == "" || req.Ticker == "" {
		return solana.PublicKey{}, solana.Signature{}, ErrInvalidRequest
	}

	// A fresh mint keypair per attempt, never reused.
	mint, err := c.newMint()
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("generate mint keypair: %w", err)
	}
	log = log.With("mint", mint.PublicKey().String())

	image := c.resolveImage(ctx, log, req)

	uri, err := c.uploadMetadata(ctx, req, image)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("%w: %v", ErrMetadataUpload, err)
	}
	log.Info("Metadata uploaded", "metadata_uri", uri)

	tx, err := c.requestTransaction(ctx, mint.PublicKey(), req, uri, devBuy)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("%w: %v", ErrCreateTransaction, err)
	}

	if err := c.sign(tx, mint); err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("%w: %v", ErrSign, err)
	}

	sig, err := c.ledger.Submit(ctx, tx)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	log.Info("Transaction submitted", "signature", sig.String())

	if err := c.ledger.Confirm(ctx, sig); err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("%w: %v", ErrConfirm, err)
	}

	return mint.PublicKey(), sig, nil
}

// resolveImage picks the supplied image, a fetched ImageURL, or the placeholder.
func (c *Client) resolveImage(ctx context.Context, log *slog.Logger, req Request) *media.Image {
	if req.Image != nil && len(req.Image.Bytes) > 0 {
		return req.Image
	}
	if req.ImageURL != "" && c.images != nil {
		img, err := c.images.Fetch(ctx, req.ImageURL)
		if err == nil {
			return img
		}
		log.Warn("Image fetch failed, using placeholder", "image_url", req.ImageURL, "error", err)
	}
	return &media.Image{
		Bytes:       placeholderImage(),
		Filename:    "placeholder_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + ".png",
		ContentType: uploadContentType,
	}
}

func (c *Client) uploadMetadata(ctx context.Context, req Request, image *media.Image) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, image.Filename))
	header.Set("Content-Type", uploadContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(image.Bytes); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}

	fields := []struct{ key, value string }{
		{"name", req.Name},
		{"symbol", req.Ticker},
		{"description", req.Description},
		{"website", req.Website},
		{"twitter", req.SocialLink},
		{"telegram", ""},
		{"showName", "true"},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.key, f.value); err != nil {
			return "", fmt.Errorf("write field %s: %w", f.key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.MetadataURL, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	respBody, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	uri := gjson.GetBytes(respBody, "metadataUri").String()
	if uri == "" {
		return "", fmt.Errorf("response missing metadataUri")
	}
	return uri, nil
}

type createMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri"`
}

type createRequest struct {
	PublicKey   string         `json:"publicKey"`
	Mint        string         `json:"mint"`
	Metadata    createMetadata `json:"metadata"`
	DevBuy      float64        `json:"devBuy"`
	PriorityFee float64        `json:"priorityFee"`
	Slippage    int            `json:"slippage"`
}

func (c *Client) requestTransaction(ctx context.Context, mint solana.PublicKey, req Request, uri string, devBuy decimal.Decimal) (*solana.Transaction, error) {
	payload, err := json.Marshal(createRequest{
		PublicKey: c.wallet.PublicKey().String(),
		Mint:      mint.String(),
		Metadata: createMetadata{
			Name:   req.Name,
			Symbol: req.Ticker,
			URI:    uri,
		},
		DevBuy:      devBuy.InexactFloat64(),
		PriorityFee: c.cfg.PriorityFee.InexactFloat64(),
		Slippage:    c.cfg.Slippage,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LaunchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	encoded := strings.TrimSpace(string(respBody))
	if gjson.ValidBytes(respBody) {
		if field := gjson.GetBytes(respBody, "transaction"); field.Exists() {
			encoded = field.String()
		}
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("deserialize transaction: %w", err)
	}
	return tx, nil
}

// sign applies both mandatory signatures: the process wallet and the new mint.
func (c *Client) sign(tx *solana.Transaction, mint solana.PrivateKey) error {
	walletKey := c.wallet.PrivateKey()
	mintPub := mint.PublicKey()

	if !tx.Message.IsSigner(walletKey.PublicKey()) {
		return fmt.Errorf("transaction does not require wallet %s to sign", walletKey.PublicKey())
	}
	if !tx.Message.IsSigner(mintPub) {
		return fmt.Errorf("transaction does not require mint %s to sign", mintPub)
	}

	tx.Signatures = nil
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		switch {
		case key.Equals(walletKey.PublicKey()):
			return &walletKey
		case key.Equals(mintPub):
			return &mint
		}
		return nil
	})
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))
	}
	return body, nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
