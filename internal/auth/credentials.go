package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/todoapp/internal/model"
)

// DefaultRoles はロール指定のないユーザーに付与されるロール。
var DefaultRoles = []string{"USER", "ADMIN"}

// UserSeed は起動時に登録するユーザーの平文定義。
type UserSeed struct {
	Username string
	Password string
	Roles    []string
}

// DefaultUsers は組み込みのユーザー定義を返す。
func DefaultUsers() []UserSeed {
	return []UserSeed{
		{Username: "rvg", Password: "asdf", Roles: DefaultRoles},
		{Username: "ric", Password: "qwerty", Roles: DefaultRoles},
	}
}

// ParseUsers は "name:password[:ROLE|ROLE],..." 形式のユーザー定義を解析する。
// 空文字列の場合はDefaultUsersを返す。
func ParseUsers(raw string) ([]UserSeed, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultUsers(), nil
	}

	var seeds []UserSeed
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid user entry %q: want name:password[:ROLE|ROLE]", entry)
		}

		roles := DefaultRoles
		if len(parts) == 3 && parts[2] != "" {
			roles = nil
			for _, role := range strings.Split(parts[2], "|") {
				if role = strings.ToUpper(strings.TrimSpace(role)); role != "" {
					roles = append(roles, role)
				}
			}
		}
		seeds = append(seeds, UserSeed{Username: parts[0], Password: parts[1], Roles: roles})
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("no users defined in %q", raw)
	}
	return seeds, nil
}

// CredentialStore は起動時に登録した認証情報を保持し、ログイン時の照合を行う。
// 登録後は変更されないため、複数のゴルーチンから同時に参照してよい。
type CredentialStore struct {
	credentials map[string]*model.Credential
	dummyHash   []byte
}

// NewCredentialStore はseedsのパスワードをbcryptでハッシュ化してCredentialStoreを生成する。
// costにはbcrypt.DefaultCostを指定する（テストではbcrypt.MinCostを使う）。
// ユーザー名は大文字小文字を区別しない。
func NewCredentialStore(seeds []UserSeed, cost int) (*CredentialStore, error) {
	store := &CredentialStore{credentials: make(map[string]*model.Credential, len(seeds))}

	for _, seed := range seeds {
		key := strings.ToLower(seed.Username)
		if _, exists := store.credentials[key]; exists {
			return nil, fmt.Errorf("duplicate user: %q", seed.Username)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %q: %w", seed.Username, err)
		}
		store.credentials[key] = &model.Credential{
			Username:     seed.Username,
			PasswordHash: hash,
			Roles:        append([]string(nil), seed.Roles...),
		}
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash dummy password: %w", err)
	}
	store.dummyHash = dummy

	return store, nil
}

// Authenticate はユーザー名とパスワードを照合する。
// 一致しない場合はmodel.ErrInvalidCredentialsを返す。
// 存在しないユーザーでもダミーハッシュとの比較を1回行い、応答時間を揃える。
func (s *CredentialStore) Authenticate(username, password string) (*model.Credential, error) {
	cred, ok := s.credentials[strings.ToLower(username)]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	c := *cred
	return &c, nil
}

// Usernames は登録済みのユーザー名を返す。順序は不定。
func (s *CredentialStore) Usernames() []string {
	names := make([]string, 0, len(s.credentials))
	for _, c := range s.credentials {
		names = append(names, c.Username)
	}
	return names
}
