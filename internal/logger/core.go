package logger

import (
	"go.uber.org/zap/zapcore"
)

// Field keys lifted out of the entry into dedicated columns of the stored log
const (
	FieldIP           = "ip"
	FieldMappingID    = "mapping_id"
	FieldConnectionID = "connection_id"
)

// DBCore tees every entry into the async DB writer before handing it to the wrapped core
type DBCore struct {
	zapcore.Core
	writer *DBLogWriter
	fields []zapcore.Field
}

func NewDBCore(baseCore zapcore.Core, writer *DBLogWriter) zapcore.Core {
	return &DBCore{
		Core:   baseCore,
		writer: writer,
	}
}

// With keeps fields added through logger.With so they reach the DB entry too
func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &DBCore{
		Core:   c.Core.With(fields),
		writer: c.writer,
		fields: merged,
	}
}

func (c *DBCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := fields
	if len(c.fields) > 0 {
		all = append(append([]zapcore.Field{}, c.fields...), fields...)
	}

	logEntry := LogEntry{
		Level:   entry.Level,
		Message: entry.Message,
		Caller:  entry.Caller.Function,
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range all {
		switch f.Key {
		case FieldIP:
			logEntry.IpAddress = f.String
		case FieldMappingID:
			logEntry.MappingID = f.String
		case FieldConnectionID:
			logEntry.ConnectionID = f.String
		default:
			f.AddTo(enc)
		}
	}
	if len(enc.Fields) > 0 {
		logEntry.Fields = enc.Fields
	}

	c.writer.AddLog(logEntry)

	return c.Core.Write(entry, fields)
}

func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}
