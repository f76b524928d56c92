package router

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/blues/cfl/internal/handler"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

const (
	SignatureHeader = "X-Caller-Signature" // 0x 开头的 65 字节 secp256k1 签名
	TimestampHeader = "X-Caller-Timestamp" // 签名时的 unix 秒
)

// SignatureMessage 调用方签名的原文，按 personal_sign 规则再做一次哈希
func SignatureMessage(method, uri string, timestamp int64, body []byte) []byte {
	return []byte(fmt.Sprintf("cfl:%s %s\n%d\n%s", method, uri, timestamp, hexutil.Encode(crypto.Keccak256(body))))
}

// SignatureAuth 校验调用方签名，window 为时间戳允许的偏差
type SignatureAuth struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	used map[string]time.Time // 窗口内已使用的签名
}

// NewSignatureAuth now 为空时使用系统时间
func NewSignatureAuth(window time.Duration, now func() time.Time) *SignatureAuth {
	if now == nil {
		now = time.Now
	}
	return &SignatureAuth{window: window, now: now, used: make(map[string]time.Time)}
}

// Middleware 带调用方地址的请求必须附带该地址的有效签名
func (a *SignatureAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(handler.CallerHeader)
		if raw == "" {
			c.Next()
			return
		}
		if err := a.verify(c, raw); err != nil {
			handler.ErrorResponse(c, http.StatusUnauthorized, "调用方签名无效: "+err.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *SignatureAuth) verify(c *gin.Context, raw string) error {
	if !common.IsHexAddress(raw) {
		return fmt.Errorf("invalid caller address")
	}
	caller := common.HexToAddress(raw)

	ts, err := strconv.ParseInt(c.GetHeader(TimestampHeader), 10, 64)
	if err != nil {
		return fmt.Errorf("missing timestamp")
	}
	now := a.now()
	signedAt := time.Unix(ts, 0)
	if signedAt.Before(now.Add(-a.window)) || signedAt.After(now.Add(a.window)) {
		return fmt.Errorf("timestamp outside %s window", a.window)
	}

	sig, err := hexutil.Decode(c.GetHeader(SignatureHeader))
	if err != nil || len(sig) != crypto.SignatureLength {
		return fmt.Errorf("malformed signature")
	}
	// 钱包签名的 v 为 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	// 只接受低 s 值，同一签名只有一种写法
	r, s := new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], r, s, true) {
		return fmt.Errorf("malformed signature")
	}

	var body []byte
	if c.Request.Body != nil {
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return fmt.Errorf("read body: %v", err)
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	hash := accounts.TextHash(SignatureMessage(c.Request.Method, c.Request.URL.RequestURI(), ts, body))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("recover signer: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != caller {
		return fmt.Errorf("signer does not match caller")
	}
	return a.markUsed(hexutil.Encode(sig), now)
}

// markUsed 同一签名在窗口内只能使用一次
func (a *SignatureAuth) markUsed(sig string, now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, at := range a.used {
		if now.Sub(at) > 2*a.window {
			delete(a.used, k)
		}
	}
	if _, ok := a.used[sig]; ok {
		return fmt.Errorf("signature already used")
	}
	a.used[sig] = now
	return nil
}
