package server

import (
	"strconv"
	"strings"
	"time"

	"kvserver/internal/protocol"
)

func cmdPing(srv *Server, sess *Session, argv []string) protocol.Frame {
	if sess.Mode() == ModeSubscribed {
		msg := ""
		if len(argv) > 1 {
			msg = argv[1]
		}
		return protocol.NewArray([]protocol.Frame{
			protocol.NewBulkStringFromText("pong"),
			protocol.NewBulkStringFromText(msg),
		})
	}
	if len(argv) > 1 {
		return protocol.NewBulkStringFromText(argv[1])
	}
	return protocol.NewSimpleString("PONG")
}

func cmdQuit(srv *Server, sess *Session, argv []string) protocol.Frame {
	return protocol.NewSimpleString("OK")
}

// cmdSet implements SET key value [PX milliseconds].
func cmdSet(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) < 3 {
		return arityError("SET")
	}
	key, value := argv[1], argv[2]

	var expiresAt *time.Time
	for i := 3; i < len(argv); i++ {
		switch strings.ToUpper(argv[i]) {
		case "PX":
			if i+1 >= len(argv) {
				return protocol.NewSimpleError("ERR syntax error")
			}
			ms, err := strconv.ParseInt(argv[i+1], 10, 64)
			if err != nil {
				return protocol.NewSimpleError("ERR value is not an integer or out of range")
			}
			at := time.Now().Add(time.Duration(ms) * time.Millisecond)
			expiresAt = &at
			i++
		default:
			return protocol.NewSimpleError("ERR syntax error")
		}
	}

	srv.store.SetString(key, value, expiresAt)
	return protocol.NewBulkStringFromText("OK")
}

func cmdGet(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 2 {
		return arityError("GET")
	}
	v, ok := srv.store.GetString(argv[1])
	if !ok {
		return protocol.NewNullBulkString()
	}
	return protocol.NewBulkStringFromText(v)
}

func cmdIncr(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 2 {
		return arityError("INCR")
	}
	n, err := srv.store.Incr(argv[1])
	if err != nil {
		return errorFrame(err)
	}
	return protocol.NewInteger(n)
}

func cmdDecr(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 2 {
		return arityError("DECR")
	}
	n, err := srv.store.Decr(argv[1])
	if err != nil {
		return errorFrame(err)
	}
	return protocol.NewInteger(n)
}

func cmdIncrBy(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 3 {
		return arityError("INCRBY")
	}
	delta, err := strconv.ParseInt(argv[2], 10, 64)
	if err != nil {
		return protocol.NewSimpleError("ERR value is not an integer or out of range")
	}
	n, err := srv.store.IncrBy(argv[1], delta)
	if err != nil {
		return errorFrame(err)
	}
	return protocol.NewInteger(n)
}

func cmdDel(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) < 2 {
		return arityError("DEL")
	}
	count := int64(0)
	for _, key := range argv[1:] {
		if srv.store.Del(key) {
			count++
		}
	}
	return protocol.NewInteger(count)
}

func cmdType(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 2 {
		return arityError("TYPE")
	}
	v := srv.store.Get(argv[1])
	if v == nil {
		return protocol.NewSimpleString("none")
	}
	switch v.Kind.String() {
	case "int":
		return protocol.NewSimpleString("string")
	default:
		return protocol.NewSimpleString(v.Kind.String())
	}
}

func cmdKeys(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 2 || argv[1] != "*" {
		return protocol.NewSimpleError("ERR KEYS only supports the '*' pattern")
	}
	return stringArrayFrame(srv.store.Keys())
}

func cmdConfig(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) < 3 || strings.ToUpper(argv[1]) != "GET" {
		return protocol.NewSimpleError("ERR unsupported CONFIG subcommand")
	}
	var out []string
	for _, field := range argv[2:] {
		switch strings.ToLower(field) {
		case "dir":
			out = append(out, "dir", srv.cfg.Dir)
		case "dbfilename":
			out = append(out, "dbfilename", srv.cfg.DBFilename)
		}
	}
	return stringArrayFrame(out)
}

func cmdExists(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) < 2 {
		return arityError("EXISTS")
	}
	count := int64(0)
	for _, key := range argv[1:] {
		if srv.store.Exists(key) {
			count++
		}
	}
	return protocol.NewInteger(count)
}

func cmdExpire(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 3 {
		return arityError("EXPIRE")
	}
	secs, err := strconv.ParseInt(argv[2], 10, 64)
	if err != nil {
		return protocol.NewSimpleError("ERR value is not an integer or out of range")
	}
	at := time.Now().Add(time.Duration(secs) * time.Second)
	if srv.store.SetExpiry(argv[1], &at) {
		return protocol.NewInteger(1)
	}
	return protocol.NewInteger(0)
}

func cmdTTL(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 2 {
		return arityError("TTL")
	}
	ttl, ok := srv.store.TTL(argv[1])
	if !ok {
		return protocol.NewInteger(-2)
	}
	if ttl == nil {
		return protocol.NewInteger(-1)
	}
	secs := int64((*ttl + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return protocol.NewInteger(secs)
}
