package stackitem

// Convert implements the CONVERT opcode's type-conversion table.
// Converting an item to its own type is always a no-op identity
// conversion; every other pair either has a defined rule below or is
// rejected with ErrInvalidConversion.
func Convert(item Item, target Type) (Item, error) {
	if item.Type() == target {
		return item, nil
	}

	switch target {
	case TypeBoolean:
		return NewBoolean(item.Boolean()), nil

	case TypeInteger:
		switch v := item.(type) {
		case Boolean:
			if v {
				return NewIntegerFromInt64(1), nil
			}
			return NewIntegerFromInt64(0), nil
		case ByteString:
			return v.Int()
		case *Buffer:
			return ByteString(v.b).Int()
		}

	case TypeByteString:
		switch v := item.(type) {
		case Boolean, Integer:
			b, _ := v.ToByteArray()
			return NewByteString(b), nil
		case *Buffer:
			return v.ToByteString(), nil
		}

	case TypeBuffer:
		switch v := item.(type) {
		case ByteString:
			return NewBufferFromBytes(v), nil
		case Boolean, Integer:
			b, _ := v.ToByteArray()
			return NewBufferFromBytes(b), nil
		}

	case TypeArray:
		if s, ok := item.(*Struct); ok {
			return NewArray(s.items), nil
		}

	case TypeStruct:
		if a, ok := item.(*Array); ok {
			if len(a.items) > maxStructConvertDepth {
				return nil, ErrTooBig
			}
			return NewStruct(a.items), nil
		}
	}

	return nil, &ErrInvalidConversion{From: item.Type(), To: target}
}

// maxStructConvertDepth bounds Array->Struct conversion size; an unbounded
// one-shot copy of an attacker-controlled array is the same DoS shape the
// engine's other size limits close off.
const maxStructConvertDepth = MaxItemSize
