package domain

import "strings"

type IdentifierKind int

const (
	IdentifierPhone IdentifierKind = iota
	IdentifierEmail
)

// Identifier es el dato de login ya clasificado como email o telefono.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// ParseIdentifier decide una sola vez, en el borde, si el valor es email ("@") o telefono.
func ParseIdentifier(raw string) Identifier {
	value := strings.TrimSpace(raw)
	if strings.Contains(value, "@") {
		return Identifier{Kind: IdentifierEmail, Value: value}
	}
	return Identifier{Kind: IdentifierPhone, Value: value}
}

func (i Identifier) IsEmail() bool {
	return i.Kind == IdentifierEmail
}
