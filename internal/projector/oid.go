package projector

import "github.com/jackc/pgx/v5/pgtype"

// oidKinds — соответствие OID типов PostgreSQL тегам кодека.
var oidKinds = map[uint32]Kind{
	pgtype.Int2OID:         KindInt2,
	pgtype.Int4OID:         KindInt4,
	pgtype.Int8OID:         KindInt8,
	pgtype.Float4OID:       KindFloat4,
	pgtype.Float8OID:       KindFloat8,
	pgtype.BoolOID:         KindBool,
	pgtype.TextOID:         KindText,
	pgtype.VarcharOID:      KindText,
	pgtype.BPCharOID:       KindText,
	pgtype.NameOID:         KindText,
	pgtype.TimestampOID:    KindTimestamp,
	pgtype.TimestamptzOID:  KindTimestamptz,
	pgtype.DateOID:         KindDate,
	pgtype.JSONOID:         KindJSON,
	pgtype.JSONBOID:        KindJSON,
	pgtype.UUIDOID:         KindUUID,
	pgtype.TextArrayOID:    KindTextArray,
	pgtype.VarcharArrayOID: KindTextArray,
}

// KindFromOID возвращает тег для OID столбца; незнакомые OID — KindUnknown.
func KindFromOID(oid uint32) Kind {
	if k, ok := oidKinds[oid]; ok {
		return k
	}
	return KindUnknown
}
