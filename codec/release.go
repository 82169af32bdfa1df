package codec

import (
	"errors"

	"github.com/mnehpets/httprpc/rpcerr"
	"github.com/mnehpets/httprpc/value"
)

// closeLog collects close failures seen during one encode.
type closeLog struct {
	errs []error
}

func (l *closeLog) release(close func() error) {
	if err := close(); err != nil {
		l.errs = append(l.errs, err)
	}
}

// result combines the walk error with any close failures.
func (l *closeLog) result(err error) error {
	if err != nil {
		return err
	}
	if len(l.errs) == 0 {
		return nil
	}
	return rpcerr.Resource(errors.Join(l.errs...), "close streamed value")
}

// discard closes v without reading it.
func (l *closeLog) discard(v value.Value) {
	switch x := v.(type) {
	case *value.Sequence:
		l.release(x.Close)
	case *value.Mapping:
		l.release(x.Close)
	}
}
