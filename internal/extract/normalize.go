// Package extract — validation and normalization gate.
//
// Every candidate must pass Normalize before it may reach persistence; the
// pipeline never consumes a raw Extract result directly.
package extract

import "strings"

// minNameRunes is the shortest item name accepted by the gate.
const minNameRunes = 2

// Normalize coerces a candidate into its validated form: item names are
// trimmed and must be non-empty, quantities are clamped to at least 1, and
// units are lowercased with "pcs" as the default. Items failing the name
// check are dropped, and a candidate whose item list becomes empty is
// forced to IsOrder=false regardless of the engine's classification.
func Normalize(c Candidate) Candidate {
	out := Candidate{
		IsOrder:      c.IsOrder,
		CustomerName: strings.TrimSpace(c.CustomerName),
		OrderTime:    c.OrderTime,
		RawMessage:   strings.TrimSpace(c.RawMessage),
		Method:       c.Method,
		Err:          c.Err,
	}
	if out.Method == "" {
		out.Method = MethodPattern
	}

	out.Items = make([]Item, 0, len(c.Items))
	for _, it := range c.Items {
		name := strings.TrimSpace(it.Name)
		if len([]rune(name)) < minNameRunes {
			continue
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		unit := strings.ToLower(strings.TrimSpace(it.Unit))
		if unit == "" {
			unit = "pcs"
		}
		out.Items = append(out.Items, Item{
			Name:     name,
			Quantity: qty,
			Unit:     unit,
			Notes:    strings.TrimSpace(it.Notes),
		})
	}

	if len(out.Items) == 0 {
		out.IsOrder = false
	}
	return out
}
