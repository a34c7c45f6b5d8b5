package middleware

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"playmint/crypto"
	"playmint/gateway/attest"
)

const (
	// SignatureHeader carries the hex encoded 65-byte recoverable signature.
	SignatureHeader = "X-Playmint-Signature"
	// TimestampHeader carries the unix seconds the signature commits to.
	TimestampHeader = "X-Playmint-Timestamp"
	// AttestationHeader carries the gateway attestation token.
	AttestationHeader = "X-Playmint-Attestation"

	DefaultMaxBodyBytes = 1 << 20
	DefaultSignatureAge = 5 * time.Minute
)

type callerKey struct{}

// WithCaller stores the authenticated caller on ctx.
func WithCaller(ctx context.Context, caller crypto.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller recovered by Signed.
func CallerFrom(ctx context.Context) (crypto.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(crypto.Address)
	return caller, ok
}

// SigningPayload is the byte string a client signs for a request.
func SigningPayload(method, path string, timestamp int64, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.ToUpper(method))
	buf.WriteByte(' ')
	buf.WriteString(path)
	buf.WriteByte('\n')
	buf.WriteString(strconv.FormatInt(timestamp, 10))
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}

// SignRequest attaches signature headers for key to req. body must be the
// exact request body.
func SignRequest(req *http.Request, key *crypto.PrivateKey, body []byte, now time.Time) error {
	ts := now.Unix()
	sig, err := key.Sign(SigningPayload(req.Method, req.URL.Path, ts, body))
	if err != nil {
		return err
	}
	req.Header.Set(TimestampHeader, strconv.FormatInt(ts, 10))
	req.Header.Set(SignatureHeader, hex.EncodeToString(sig))
	return nil
}

// SignatureVerifier recovers request signers.
type SignatureVerifier struct {
	logger   *slog.Logger
	maxAge   time.Duration
	maxBody  int64
	clockNow func() time.Time
}

func NewSignatureVerifier(maxAge time.Duration, logger *slog.Logger) *SignatureVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = DefaultSignatureAge
	}
	return &SignatureVerifier{logger: logger, maxAge: maxAge, maxBody: DefaultMaxBodyBytes, clockNow: time.Now}
}

// Signed rejects requests without a fresh valid signature and stores the
// recovered caller and any attestation token on the request context.
func (v *SignatureVerifier) Signed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, body, err := v.recover(r)
		if err != nil {
			v.logger.Debug("signature rejected",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()))
			http.Error(w, "invalid request signature", http.StatusUnauthorized)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := WithCaller(r.Context(), caller)
		if token := strings.TrimSpace(r.Header.Get(AttestationHeader)); token != "" {
			ctx = attest.WithToken(ctx, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (v *SignatureVerifier) recover(r *http.Request) (crypto.Address, []byte, error) {
	rawSig := strings.TrimPrefix(strings.TrimSpace(r.Header.Get(SignatureHeader)), "0x")
	if rawSig == "" {
		return crypto.Address{}, nil, fmt.Errorf("missing %s", SignatureHeader)
	}
	sig, err := hex.DecodeString(rawSig)
	if err != nil {
		return crypto.Address{}, nil, fmt.Errorf("decode signature: %w", err)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(TimestampHeader)), 10, 64)
	if err != nil {
		return crypto.Address{}, nil, fmt.Errorf("parse %s: %w", TimestampHeader, err)
	}
	age := v.clockNow().Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > v.maxAge {
		return crypto.Address{}, nil, fmt.Errorf("signature timestamp outside %s", v.maxAge)
	}
	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(io.LimitReader(r.Body, v.maxBody+1))
		if err != nil {
			return crypto.Address{}, nil, fmt.Errorf("read body: %w", err)
		}
		if int64(len(body)) > v.maxBody {
			return crypto.Address{}, nil, fmt.Errorf("body exceeds %d bytes", v.maxBody)
		}
	}
	caller, err := crypto.RecoverAddress(SigningPayload(r.Method, r.URL.Path, ts, body), sig)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	return caller, body, nil
}
