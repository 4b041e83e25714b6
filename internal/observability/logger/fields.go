package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP fields.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Domain fields.

func ClientID(v string) zap.Field  { return zap.String("client_id", v) }
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }
func Scope(v string) zap.Field     { return zap.String("scope", v) }
func UserID(v int64) zap.Field     { return zap.Int64("user_id", v) }
func KeyID(v string) zap.Field     { return zap.String("kid", v) }

// Op names the operation emitting the entry, e.g. "authz.GenerateAuthorizationCode".
func Op(v string) zap.Field { return zap.String("op", v) }

// Err attaches an error under the standard "error" key.
func Err(err error) zap.Field { return zap.Error(err) }
