// internal/service/affiliate/domain/visitor.go
package domain

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// 访客令牌格式: vid.<随机ID>.<HMAC签名>
// 由服务端签发，替代纯客户端自报的 visitor id，防止伪造点击记录。
const visitorTokenPrefix = "vid"

// NewVisitorToken 签发一个新的访客令牌，返回 (令牌, 访客ID)。
func NewVisitorToken(secret string) (string, string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	visitorID := hex.EncodeToString(buf)
	return visitorTokenPrefix + "." + visitorID + "." + signVisitorID(secret, visitorID), visitorID, nil
}

// VerifyVisitorToken 校验令牌并返回其中的访客 ID。
// 不带分隔符的纯 ID 视为旧版客户端的本地存储标识，原样接受。
// 格式正确但签名不匹配的令牌判定为篡改，返回 ErrInvalidVisitorToken。
func VerifyVisitorToken(secret, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidVisitorToken
	}
	if !strings.Contains(token, ".") {
		return token, nil // legacy visitor id
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != visitorTokenPrefix {
		return "", ErrInvalidVisitorToken
	}
	visitorID, sig := parts[1], parts[2]
	if !hmac.Equal([]byte(sig), []byte(signVisitorID(secret, visitorID))) {
		return "", ErrInvalidVisitorToken
	}
	return visitorID, nil
}

func signVisitorID(secret, visitorID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(visitorID))
	return hex.EncodeToString(mac.Sum(nil))
}
