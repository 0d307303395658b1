package adminapi

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/webserver"
	"github.com/jeffmoIA/netdesk/pkg/common"
)

type loginPayload struct {
	Username string `json:"username" validate:"required,min=1,max=50"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

func registerAuthRoutes() {
	webserver.ApiPOST("/auth/login", Login)
}

// Login verifies operator credentials and issues a signed token.
func Login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	db := GetDB(c)
	var opr domain.SysOpr
	if err := db.Where("username = ?", payload.Username).First(&opr).Error; err != nil {
		return fail(c, http.StatusUnauthorized, "AUTH_FAILED", "Invalid username or password", nil)
	}
	if opr.Status == "disabled" {
		return fail(c, http.StatusUnauthorized, "AUTH_FAILED", "Account disabled", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(opr.Password), []byte(payload.Password)); err != nil {
		zap.L().Warn("login rejected",
			zap.String("username", payload.Username),
			zap.String("ip", c.RealIP()))
		return fail(c, http.StatusUnauthorized, "AUTH_FAILED", "Invalid username or password", nil)
	}

	secret := GetAppContext(c).Config().Web.JwtSecret
	claims := jwt.MapClaims{
		"uid": opr.ID,
		"usr": opr.Username,
		"lvl": opr.Level,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_FAILED", "Failed to issue token", err.Error())
	}

	now := time.Now()
	db.Model(&domain.SysOpr{}).Where("id = ?", opr.ID).Update("last_login", now)
	db.Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   opr.Username,
		OprIp:     c.RealIP(),
		OptAction: "login",
		OptDesc:   "operator login",
		OptTime:   now,
	})

	return ok(c, map[string]interface{}{
		"token":    token,
		"username": opr.Username,
		"realname": opr.Realname,
		"level":    opr.Level,
	})
}
