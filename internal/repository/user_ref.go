package repository

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// userRef is a user id as the rest of the service sees it: a hex string. It is
// stored as an ObjectId whenever it parses as one, matching the users
// collection, and reads back from either an ObjectId or a plain string.
type userRef string

func (r userRef) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if oid, err := primitive.ObjectIDFromHex(string(r)); err == nil {
		return bson.MarshalValue(oid)
	}
	return bson.MarshalValue(string(r))
}

func (r *userRef) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.ObjectID:
		*r = userRef(raw.ObjectID().Hex())
	case bsontype.String:
		*r = userRef(raw.StringValue())
	case bsontype.Null, bsontype.Undefined:
		*r = ""
	default:
		return fmt.Errorf("decode user reference: unsupported bson type %s", t)
	}
	return nil
}

// userRefForms returns every stored form of id, so queries match documents
// written before ids were stored as ObjectIds.
func userRefForms(id string) bson.A {
	forms := bson.A{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		forms = append(forms, oid)
	}
	return forms
}
