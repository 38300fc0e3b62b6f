package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validBox() Box {
	return Box{
		Type:        BoxTypeNormal,
		Size:        BoxSizeMedium,
		Price:       decimal.RequireFromString("7.50"),
		WindowStart: "18:00",
		WindowEnd:   "20:30",
		Contents: []ContentLine{
			{ItemName: "bread", Quantity: 2},
			{ItemName: "apple", Quantity: 3},
		},
	}
}

func TestBoxValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *Box)
		wantErr bool
	}{
		{name: "valid normal box", mutate: func(b *Box) {}},
		{name: "valid surprise box", mutate: func(b *Box) { b.Type = BoxTypeSurprise; b.Contents = nil }},
		{name: "unknown type", mutate: func(b *Box) { b.Type = "Mystery" }, wantErr: true},
		{name: "unknown size", mutate: func(b *Box) { b.Size = "Huge" }, wantErr: true},
		{name: "zero price", mutate: func(b *Box) { b.Price = decimal.Zero }, wantErr: true},
		{name: "negative price", mutate: func(b *Box) { b.Price = decimal.NewFromInt(-1) }, wantErr: true},
		{name: "malformed window", mutate: func(b *Box) { b.WindowStart = "6pm" }, wantErr: true},
		{name: "window ends before start", mutate: func(b *Box) { b.WindowEnd = "17:00" }, wantErr: true},
		{name: "surprise with contents", mutate: func(b *Box) { b.Type = BoxTypeSurprise }, wantErr: true},
		{name: "duplicate content", mutate: func(b *Box) { b.Contents[1].ItemName = "bread" }, wantErr: true},
		{name: "zero quantity", mutate: func(b *Box) { b.Contents[0].Quantity = 0 }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := validBox()
			tc.mutate(&b)
			err := b.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBox)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
