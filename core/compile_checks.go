package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Signer        = BearerTokenSigner{}
	_ DispatchSink  = DispatchSinkFunc(nil)
	_ EventRecorder = (*Service)(nil)
	_ Forwarder     = (*Service)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
