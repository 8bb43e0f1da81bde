package cart

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionKey é a chave do carrinho dentro dos valores da sessão
const SessionKey = "shopping_cart"

// SessionStore guarda o carrinho numa sessão gorilla (cookie assinado por omissão)
type SessionStore struct {
	store sessions.Store
	name  string
}

// NewSessionStore cria um SessionStore sobre um sessions.Store
func NewSessionStore(store sessions.Store, name string) *SessionStore {
	return &SessionStore{store: store, name: name}
}

// NewCookieStore cria o sessions.Store usado em produção
func NewCookieStore(secret []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Load lê o carrinho da sessão. Uma sessão ausente ou corrompida resulta num carrinho vazio.
func (s *SessionStore) Load(r *http.Request) *Cart {
	session, err := s.store.Get(r, s.name)
	if err != nil || session == nil {
		return New()
	}

	raw, ok := session.Values[SessionKey].(string)
	if !ok || raw == "" {
		return New()
	}

	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return New()
	}
	if c.Items == nil {
		c.Items = New().Items
	}
	// o total guardado nunca é usado diretamente
	c.RecomputeTotal()
	return &c
}

// Save grava o carrinho na sessão
func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, c *Cart) error {
	// Get devolve uma sessão nova quando o cookie existente não se consegue descodificar
	session, _ := s.store.Get(r, s.name)
	if session == nil {
		return fmt.Errorf("failed to open session %q", s.name)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	session.Values[SessionKey] = string(data)

	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to save cart session: %w", err)
	}
	return nil
}
