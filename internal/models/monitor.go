package models

import (
	"fmt"
	"time"
)

// Kind é o tipo de alvo monitorado
type Kind string

const (
	KindProduct    Kind = "product"
	KindCollection Kind = "collection"
	KindSearch     Kind = "search"
)

// Kinds lista os tipos de monitor reconhecidos
var Kinds = []Kind{KindProduct, KindCollection, KindSearch}

// ParseKind valida o tipo informado pelo usuário
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("tipo de monitor desconhecido: %q", s)
}

// Monitor representa um alvo de monitoramento cadastrado.
// Query só é preenchida quando Kind == KindSearch.
// Destination é o chat do Telegram que recebe as notificações.
type Monitor struct {
	ID          int64
	URL         string
	Kind        Kind
	Query       string
	Destination int64
	CreatedAt   time.Time
}
