package filecodec

import "strconv"

// Scalars are stored as their canonical text form so that data files stay
// readable with ordinary tools.

func EncodeInt(v int64) []byte {
	return strconv.AppendInt(nil, v, 10)
}

func DecodeInt(b []byte, bitSize int) (int64, error) {
	return strconv.ParseInt(string(b), 10, bitSize)
}

func EncodeFloat(v float64, bitSize int) []byte {
	return strconv.AppendFloat(nil, v, 'g', -1, bitSize)
}

func DecodeFloat(b []byte, bitSize int) (float64, error) {
	return strconv.ParseFloat(string(b), bitSize)
}

func EncodeBool(v bool) []byte {
	return strconv.AppendBool(nil, v)
}

func DecodeBool(b []byte) (bool, error) {
	return strconv.ParseBool(string(b))
}
