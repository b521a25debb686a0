package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/pkg/common"
	"gorm.io/gorm"
)

// OperatorKey holds the *domain.SysOpr loaded for the request token
const OperatorKey = "operator"

// JwtClaims carries the signed-in operator
type JwtClaims struct {
	Uid      string `json:"uid"`
	Username string `json:"username"`
	Level    string `json:"level"`
	jwt.RegisteredClaims
}

// CreateToken signs an HS256 token for the operator
func CreateToken(secret string, opr domain.SysOpr, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	expires := time.Now().Add(ttl)
	claims := &JwtClaims{
		Uid:      strconv.FormatInt(opr.ID, 10),
		Username: opr.Username,
		Level:    opr.Level,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   opr.Username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return token, expires, err
}

// GetCurrentUser returns the claims of the request token, nil when absent
func GetCurrentUser(c echo.Context) *JwtClaims {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return nil
	}
	claims, ok := token.Claims.(*JwtClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetCurrentOperator returns the operator row loaded by operatorGuard
func GetCurrentOperator(c echo.Context) *domain.SysOpr {
	opr, _ := c.Get(OperatorKey).(*domain.SysOpr)
	return opr
}

// operatorGuard loads the token's operator on every request. Tokens of
// deleted or disabled operators are rejected even before they expire.
func operatorGuard(db func() *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == loginPath {
				return next(c)
			}
			u := GetCurrentUser(c)
			if u == nil {
				return unauthorized(c, "authentication required")
			}
			id, err := strconv.ParseInt(u.Uid, 10, 64)
			if err != nil {
				return unauthorized(c, "invalid token subject")
			}
			var opr domain.SysOpr
			if err := db().First(&opr, id).Error; err != nil {
				return unauthorized(c, "operator no longer exists")
			}
			if opr.Status == common.DISABLED {
				return unauthorized(c, "operator account is disabled")
			}
			c.Set(OperatorKey, &opr)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"error":   "UNAUTHORIZED",
		"message": msg,
	})
}

// GetOperatorName returns the username of the caller or "anonymous"
func GetOperatorName(c echo.Context) string {
	if opr := GetCurrentOperator(c); opr != nil {
		return opr.Username
	}
	if u := GetCurrentUser(c); u != nil {
		return u.Username
	}
	return "anonymous"
}

// RequireLevel rejects callers whose current operator level is not listed.
// The level comes from the database row, not from the token claims.
func RequireLevel(levels ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			opr := GetCurrentOperator(c)
			if opr == nil {
				return unauthorized(c, "authentication required")
			}
			for _, l := range levels {
				if opr.Level == l {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]interface{}{
				"error":   "FORBIDDEN",
				"message": "Operator level " + opr.Level + " is not allowed to perform this action",
			})
		}
	}
}

// AdminOnly is RequireLevel for super and admin operators
func AdminOnly() echo.MiddlewareFunc {
	return RequireLevel(domain.LevelSuper, domain.LevelAdmin)
}
