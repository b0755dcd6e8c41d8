package repository

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// money stores amounts as Decimal128 and also reads the plain numbers older
// catalog documents were written with.
type money struct {
	decimal.Decimal
}

func newMoney(d decimal.Decimal) money { return money{Decimal: d} }

func (m money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(m.Decimal.String())
	if err != nil {
		return 0, nil, fmt.Errorf("encode amount %s: %w", m.Decimal.String(), err)
	}
	return bson.MarshalValue(d)
}

func (m *money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		d, ok := raw.Decimal128OK()
		if !ok {
			return fmt.Errorf("decode amount: malformed decimal128")
		}
		parsed, err := decimal.NewFromString(d.String())
		if err != nil {
			return fmt.Errorf("decode amount %s: %w", d.String(), err)
		}
		m.Decimal = parsed
	case bsontype.Double:
		m.Decimal = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		m.Decimal = decimal.NewFromInt(int64(raw.Int32()))
	case bsontype.Int64:
		m.Decimal = decimal.NewFromInt(raw.Int64())
	case bsontype.Null, bsontype.Undefined:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("decode amount: unsupported bson type %s", t)
	}
	return nil
}
