package models

import "context"

// EffectivenessReader looks up historical effectiveness for a symbol and side
type EffectivenessReader interface {
	Lookup(symbol string, side Direction) (Effectiveness, bool)
}

// EffectivenessSource loads the whole effectiveness table from storage
type EffectivenessSource interface {
	Load(ctx context.Context) (map[string]Effectiveness, error)
}
