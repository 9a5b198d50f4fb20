// Package trackedelement implements the reflective, typed, lazily-allocated
// value tree used for every long-lived record in the system (devices,
// SSIDs, alerts, RRDs, datasource state) and for its JSON serialization.
//
// This mirrors Kismet's tracker_element model: every element carries a
// fixed Kind tag and the field id it was registered under (see
// internal/entrytracker). Scalars allocate eagerly; map/vector children may
// be dynamic, reserving an id and description but allocating the child only
// on first write.
package trackedelement

// Kind is the fixed set of wire types an Element can hold.
type Kind int

const (
	KindInvalid Kind = iota

	// scalars
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindString
	KindByteArray
	KindMAC
	KindUUID
	KindIPv4
	KindDeviceKey

	// aggregates
	KindMapString     // map<string,elem>, addressed/serialized by field id -> name
	KindMapInt        // map<i/u64,elem>
	KindMapFloat      // map<f64,elem>
	KindMapFloatFloat // map<f64,f64> (not elem-valued)
	KindMapMAC        // map<mac,elem>
	KindMapUUID       // map<uuid,elem>
	KindMapHashkey    // map<hashkey,elem>
	KindMapDeviceKey  // map<device_key,elem>
	KindVector        // vector<elem>
	KindVectorFloat   // vector<f64>
	KindVectorString  // vector<string>
	KindPairFloat     // pair<f64,f64>

	// indirection
	KindAlias       // weak reference to another element
	KindPlaceholder // materialized on demand for paths that don't resolve yet
)

// String names a Kind for diagnostics and description text.
func (k Kind) String() string {
	switch k {
	case KindI8:
		return "int8"
	case KindI16:
		return "int16"
	case KindI32:
		return "int32"
	case KindI64:
		return "int64"
	case KindU8:
		return "uint8"
	case KindU16:
		return "uint16"
	case KindU32:
		return "uint32"
	case KindU64:
		return "uint64"
	case KindF32:
		return "float32"
	case KindF64:
		return "double"
	case KindString:
		return "string"
	case KindByteArray:
		return "byte_array"
	case KindMAC:
		return "mac_addr"
	case KindUUID:
		return "uuid"
	case KindIPv4:
		return "ipv4_addr"
	case KindDeviceKey:
		return "device_key"
	case KindMapString:
		return "submap"
	case KindMapInt:
		return "int_map"
	case KindMapFloat:
		return "double_map"
	case KindMapFloatFloat:
		return "double_double_map"
	case KindMapMAC:
		return "macaddr_map"
	case KindMapUUID:
		return "uuid_map"
	case KindMapHashkey:
		return "hashkey_map"
	case KindMapDeviceKey:
		return "devicekey_map"
	case KindVector:
		return "vector"
	case KindVectorFloat:
		return "vector_double"
	case KindVectorString:
		return "vector_string"
	case KindPairFloat:
		return "pair_double"
	case KindAlias:
		return "alias"
	case KindPlaceholder:
		return "placeholder"
	default:
		return "invalid"
	}
}

// IsScalar reports whether k is one of the scalar wire types.
func (k Kind) IsScalar() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64, KindU8, KindU16, KindU32, KindU64,
		KindF32, KindF64, KindString, KindByteArray, KindMAC, KindUUID, KindIPv4, KindDeviceKey:
		return true
	default:
		return false
	}
}

// IsStringable reports whether k shares the common as_string coercion.
func (k Kind) IsStringable() bool {
	return k.IsScalar()
}

// IsNumeric reports whether k is one of the integer/float scalar kinds.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64, KindU8, KindU16, KindU32, KindU64, KindF32, KindF64:
		return true
	default:
		return false
	}
}

// IsMap reports whether k is one of the elem-valued or float-valued map kinds.
func (k Kind) IsMap() bool {
	switch k {
	case KindMapString, KindMapInt, KindMapFloat, KindMapFloatFloat,
		KindMapMAC, KindMapUUID, KindMapHashkey, KindMapDeviceKey:
		return true
	default:
		return false
	}
}

// IsVector reports whether k is one of the vector kinds.
func (k Kind) IsVector() bool {
	switch k {
	case KindVector, KindVectorFloat, KindVectorString:
		return true
	default:
		return false
	}
}
