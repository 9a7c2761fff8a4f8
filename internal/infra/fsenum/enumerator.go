// Package fsenum lists frame files in a directory in a defined order.
package fsenum

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
)

// Order controls how frame file names are sorted.
type Order string

const (
	// OrderNatural compares digit runs by value: frame2 < frame10.
	OrderNatural Order = "natural"
	// OrderLexical compares names byte by byte: frame10 < frame2.
	OrderLexical Order = "lexical"
)

const DefaultExtension = ".ppm"

func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case OrderNatural, OrderLexical:
		return o, nil
	default:
		return "", fmt.Errorf("invalid frame order %q (expected natural|lexical)", s)
	}
}

// Compare orders two file names the way o sorts them.
func (o Order) Compare(a, b string) int {
	if o == OrderLexical {
		return strings.Compare(a, b)
	}
	return CompareNatural(a, b)
}

type Enumerator struct {
	order Order
	ext   string
}

func NewEnumerator(order Order) *Enumerator {
	return &Enumerator{order: order, ext: DefaultExtension}
}

func (e *Enumerator) Order() Order { return e.order }

// Enumerate returns the frame files directly inside dir. Subdirectories are
// not descended into. An empty result is an *entity.EmptyInputError.
func (e *Enumerator) Enumerate(dir string) (*entity.FrameSequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var names []string
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(de.Name()), e.ext) {
			continue
		}
		names = append(names, de.Name())
	}
	if len(names) == 0 {
		return nil, &entity.EmptyInputError{Dir: dir}
	}

	slices.SortFunc(names, e.order.Compare)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return entity.NewFrameSequence(dir, paths), nil
}
