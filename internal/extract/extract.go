// Package extract implements the order-extraction engine: pure functions
// that turn free-form chat text into a structured order candidate.
//
// Extraction is strictly deterministic — the same (text, sender) input
// always yields the same candidate — which is what makes task retries safe
// upstream. The engine never returns an error and never panics outward; any
// internal fault degrades to a non-order candidate with an annotation.
//
// Classification requires both a lexical order-intent indicator (verbs such
// as "want"/"order", or quantity-unit markers such as "kg"/"pcs") and at
// least one extractable item. Item extraction tries pattern classes in
// priority order and uses only the first class that matches, so a single
// phrase is never counted twice:
//
//  1. quantity + unit + name   ("2 kg rice")
//  2. bare quantity + name     ("3 shirts")
//  3. keyword fallback         (exactly one item, quantity 1, from a fixed
//     vocabulary — only when no numeric pattern matched)
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MethodPattern tags candidates produced by regex pattern extraction. It is
// the only extraction method currently implemented; the tag travels with
// the persisted snapshot so future engines can be distinguished.
const MethodPattern = "pattern"

// Item is a single extracted order line candidate.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
	Notes    string `json:"notes,omitempty"`
}

// Candidate is the unvalidated output of the extraction engine. OrderTime
// is empty when the message mentioned no time. Err carries an annotation
// when extraction degraded due to an internal fault; it never aborts the
// pipeline.
type Candidate struct {
	IsOrder      bool   `json:"is_order"`
	CustomerName string `json:"customer_name,omitempty"`
	Items        []Item `json:"items"`
	OrderTime    string `json:"order_time,omitempty"`
	RawMessage   string `json:"raw_message,omitempty"`
	Method       string `json:"extraction_method"`
	Err          string `json:"error,omitempty"`
}

// Lexical markers that signal purchase intent. Matched against the
// lowercased message with word boundaries.
var indicatorRE = regexp.MustCompile(
	`\b(order|book|reserve|want|need|take|get|buy|pcs?|piece|kg|liter|pack)\b`)

// Quantity+unit+name patterns, one per unit class. Checked in order.
var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*(kg|kgs|kilogram|kilograms)\s+([a-zA-Z][a-zA-Z ]*)`),
	regexp.MustCompile(`(?i)(\d+)\s*(liter|liters|lit)\s+([a-zA-Z][a-zA-Z ]*)`),
	regexp.MustCompile(`(?i)(\d+)\s*(pcs|pc|pieces|piece)\s+([a-zA-Z][a-zA-Z ]*)`),
	regexp.MustCompile(`(?i)(\d+)\s*(packs|pack|packets|packet)\s+([a-zA-Z][a-zA-Z ]*)`),
}

// Bare quantity+name pattern ("3 shirts").
var bareQuantityRE = regexp.MustCompile(`(?i)(\d+)\s+([a-zA-Z][a-zA-Z ]*)`)

// timeRE recognizes H:MM with an optional am/pm marker.
var timeRE = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*(am|pm)?\b`)

// numericNameRE guards against misreading a second number as an item name.
var numericNameRE = regexp.MustCompile(`^\d`)

// fallbackVocabulary is the fixed keyword list used to infer a single
// quantity-1 item when no numeric pattern matched.
var fallbackVocabulary = []string{
	"pizza", "burger", "sandwich", "rice", "chicken", "fish", "meat",
	"bread", "cake", "coffee", "tea", "juice", "water", "milk",
	"egg", "flour", "sugar", "oil", "salt", "vegetable", "fruit",
}

// Extract classifies text as an order candidate and pulls out items and an
// optional order time. senderName is carried through as the candidate
// customer name; it plays no part in classification.
func Extract(text, senderName string) (c Candidate) {
	// The engine must never propagate a fault into the pipeline.
	defer func() {
		if r := recover(); r != nil {
			c = Candidate{
				Items:      []Item{},
				RawMessage: text,
				Method:     MethodPattern,
				Err:        fmt.Sprintf("extraction fault: %v", r),
			}
		}
	}()

	lower := strings.ToLower(strings.TrimSpace(text))

	c = Candidate{
		CustomerName: senderName,
		Items:        extractItems(text),
		OrderTime:    extractTime(lower),
		RawMessage:   text,
		Method:       MethodPattern,
	}
	// Items alone do not qualify: a lexical indicator must also be present,
	// which keeps casual numeric mentions from becoming orders.
	c.IsOrder = indicatorRE.MatchString(lower) && len(c.Items) > 0
	return c
}

// extractItems applies the pattern classes in priority order and returns
// the matches of the first class that yields at least one usable item.
func extractItems(text string) []Item {
	if items := matchUnitPatterns(text); len(items) > 0 {
		return items
	}
	if items := matchBareQuantities(text); len(items) > 0 {
		return items
	}
	return matchVocabulary(text)
}

func matchUnitPatterns(text string) []Item {
	var items []Item
	for _, re := range unitPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			qty, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			name := strings.TrimSpace(m[3])
			if !usableName(name) {
				continue
			}
			unit := strings.ToLower(m[2])
			items = append(items, Item{
				Name:     name,
				Quantity: qty,
				Unit:     unit,
				Notes:    fmt.Sprintf("%d %s %s", qty, unit, name),
			})
		}
	}
	return items
}

func matchBareQuantities(text string) []Item {
	var items []Item
	for _, m := range bareQuantityRE.FindAllStringSubmatch(text, -1) {
		qty, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		name := strings.TrimSpace(m[2])
		// The bare class needs at least 3 characters, stricter than the
		// unit class, so the am/pm tail of a time mention ("at 5:30 pm")
		// cannot surface as an item.
		if len(name) < 3 || !usableName(name) {
			continue
		}
		items = append(items, Item{
			Name:     name,
			Quantity: qty,
			Unit:     "pcs",
			Notes:    fmt.Sprintf("%d %s", qty, name),
		})
	}
	return items
}

// matchVocabulary infers at most one quantity-1 item from the fixed
// vocabulary. First keyword wins.
func matchVocabulary(text string) []Item {
	lower := strings.ToLower(text)
	for _, kw := range fallbackVocabulary {
		if strings.Contains(lower, kw) {
			return []Item{{
				Name:     kw,
				Quantity: 1,
				Unit:     "pcs",
				Notes:    fmt.Sprintf("1 %s (inferred)", kw),
			}}
		}
	}
	return nil
}

// usableName rejects names that are too short to be a product, or that
// start with a digit (a second number misread as a name).
func usableName(name string) bool {
	return len(name) >= 2 && !numericNameRE.MatchString(name)
}

// extractTime finds the first H:MM mention and normalizes it to 12-hour
// "HH:MM AM/PM". Returns "" when the message carries no time.
func extractTime(lower string) string {
	m := timeRE.FindStringSubmatch(lower)
	if m == nil {
		return ""
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return ""
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || minute > 59 {
		return ""
	}
	switch m[3] {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%02d:%02d %s", display, minute, period)
}
