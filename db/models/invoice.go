package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Invoice : Invoice Model
type Invoice struct {
	bun.BaseModel `bun:"table:invoices,alias:invoice"`

	Address        string       `json:"address" bun:",pk,type:char(42)"`
	Receiver       string       `json:"receiver" bun:",notnull,type:char(42)"`
	Mnemonic       string       `json:"-" bun:",notnull"`
	State          uint32       `json:"state" bun:",notnull,default:0"`
	Value          float64      `json:"value" bun:",notnull"`
	Lifetime       int64        `json:"lifetime" bun:",notnull"`
	CompleteAction uint32       `json:"complete_action" bun:",notnull,default:1"`
	TxHash         string       `json:"tx_hash,omitempty" bun:",nullzero"`
	ErrorMessage   string       `json:"error_message,omitempty" bun:",nullzero"`
	CreatedAt      time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt      bun.NullTime `json:"updated_at"`
}

func (i *Invoice) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		i.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Invoice)(nil)
