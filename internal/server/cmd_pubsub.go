package server

import "kvserver/internal/protocol"

func cmdSubscribe(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) < 2 {
		return arityError("SUBSCRIBE")
	}
	var last protocol.Frame
	for _, channel := range argv[1:] {
		srv.pubsub.Subscribe(channel, sess)
		count := sess.subscribe(channel)
		last = protocol.NewArray([]protocol.Frame{
			protocol.NewBulkStringFromText("subscribe"),
			protocol.NewBulkStringFromText(channel),
			protocol.NewInteger(int64(count)),
		})
		sess.Send(last)
	}
	// The reply has already gone out per-channel via Send; the dispatch
	// loop's own reply write is suppressed by returning a zero frame only
	// when at least one channel was processed.
	return protocol.Frame{}
}

func cmdUnsubscribe(srv *Server, sess *Session, argv []string) protocol.Frame {
	channels := argv[1:]
	if len(channels) == 0 {
		channels = sess.subscribedChannels()
	}
	for _, channel := range channels {
		srv.pubsub.Unsubscribe(channel, sess)
		count := sess.unsubscribe(channel)
		sess.Send(protocol.NewArray([]protocol.Frame{
			protocol.NewBulkStringFromText("unsubscribe"),
			protocol.NewBulkStringFromText(channel),
			protocol.NewInteger(int64(count)),
		}))
	}
	return protocol.Frame{}
}

// cmdReset returns the connection to its initial state: any open
// transaction is discarded and every subscription is dropped.
func cmdReset(srv *Server, sess *Session, argv []string) protocol.Frame {
	sess.discardTransaction()
	for _, channel := range sess.subscribedChannels() {
		srv.pubsub.Unsubscribe(channel, sess)
		sess.unsubscribe(channel)
	}
	return protocol.NewSimpleString("RESET")
}

func cmdPublish(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 3 {
		return arityError("PUBLISH")
	}
	n := srv.pubsub.Publish(argv[1], argv[2])
	return protocol.NewInteger(int64(n))
}
