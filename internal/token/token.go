// Пакет token — выпуск и проверка JWT (HS256) для пользователей редактора.
// Ключи подписи хранятся в JWK Set (jwkset), проверка идёт через keyfunc
// по kid из заголовка токена. Это позволяет ротировать секрет: новые токены
// подписываются активным ключом, старые ещё принимаются до истечения.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sourabh1428/query-editor/internal/domain/model"
)

// Issuer — значение iss во всех выпускаемых токенах.
const Issuer = "query-editor"

// Ошибки проверки токена.
var (
	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("срок действия токена истёк")
	// ErrInvalid — токен отсутствует, повреждён или подпись неверна.
	ErrInvalid = errors.New("невалидный токен")
)

// Key — секрет HS256 с идентификатором.
type Key struct {
	ID     string
	Secret []byte
}

// Claims — claims выпускаемого токена.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Identity — неизменяемые сведения о вызывающем, извлечённые из токена.
type Identity struct {
	UserID    int64
	Username  string
	Email     string
	Role      model.Role
	ExpiresAt time.Time
}

// Service выпускает и проверяет токены.
type Service struct {
	active Key
	jwks   keyfunc.Keyfunc
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewService создаёт сервис токенов.
// active — ключ подписи, previous — ключи, которые ещё принимаются при проверке.
func NewService(active Key, previous []Key, ttl, leeway time.Duration) (*Service, error) {
	if active.ID == "" || len(active.Secret) == 0 {
		return nil, errors.New("активный ключ должен иметь kid и секрет")
	}

	storage := jwkset.NewMemoryStorage()
	for _, k := range append([]Key{active}, previous...) {
		jwk, err := jwkset.NewJWKFromKey(k.Secret, jwkset.JWKOptions{
			Marshal: jwkset.JWKMarshalOptions{Private: true},
			Metadata: jwkset.JWKMetadataOptions{
				ALG: jwkset.AlgHS256,
				KID: k.ID,
				USE: jwkset.UseSig,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("ключ %q: %w", k.ID, err)
		}
		if err := storage.KeyWrite(context.Background(), jwk); err != nil {
			return nil, fmt.Errorf("запись ключа %q: %w", k.ID, err)
		}
	}

	kf, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &Service{
		active: active,
		jwks:   kf,
		ttl:    ttl,
		leeway: leeway,
		now:    time.Now,
	}, nil
}

// TTL возвращает время жизни выпускаемых токенов.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue подписывает токен для пользователя активным ключом.
func (s *Service) Issue(u *model.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: u.Username,
		Email:    u.Email,
		Role:     string(u.Role),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = s.active.ID

	signed, err := tok.SignedString(s.active.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse проверяет подпись, срок действия и issuer.
// Возвращает ErrExpired для просроченного токена и ErrInvalid для всех остальных ошибок.
func (s *Service) Parse(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalid
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, s.jwks.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrInvalid
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: некорректный sub %q", ErrInvalid, claims.Subject)
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: неизвестная роль %q", ErrInvalid, claims.Role)
	}

	return &Identity{
		UserID:    userID,
		Username:  claims.Username,
		Email:     claims.Email,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
