package server

import (
	"strconv"

	"kvserver/internal/protocol"
)

func cmdZAdd(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 4 {
		return arityError("ZADD")
	}
	score, err := strconv.ParseFloat(argv[2], 64)
	if err != nil {
		return protocol.NewSimpleError("ERR value is not a valid float")
	}
	n, err := srv.store.ZAdd(argv[1], argv[3], score)
	if err != nil {
		return errorFrame(err)
	}
	return protocol.NewInteger(int64(n))
}

func cmdZRank(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 3 {
		return arityError("ZRANK")
	}
	rank, ok, err := srv.store.ZRank(argv[1], argv[2])
	if err != nil {
		return errorFrame(err)
	}
	if !ok {
		return protocol.NewNullBulkString()
	}
	return protocol.NewInteger(int64(rank))
}

func cmdZScore(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 3 {
		return arityError("ZSCORE")
	}
	score, ok, err := srv.store.ZScore(argv[1], argv[2])
	if err != nil {
		return errorFrame(err)
	}
	if !ok {
		return protocol.NewNullBulkString()
	}
	return protocol.NewBulkStringFromText(strconv.FormatFloat(score, 'g', -1, 64))
}

func cmdZRange(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 4 {
		return arityError("ZRANGE")
	}
	start, err1 := strconv.Atoi(argv[2])
	stop, err2 := strconv.Atoi(argv[3])
	if err1 != nil || err2 != nil {
		return protocol.NewSimpleError("ERR value is not an integer or out of range")
	}
	members, err := srv.store.ZRange(argv[1], start, stop)
	if err != nil {
		return errorFrame(err)
	}
	return stringArrayFrame(members)
}
