package eventbus

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/carlo-ubqty/araw-sub000/pkg/logging"
)

// EventBus dispatches events to every subscribed handler whose parameter
// list matches the published arguments.
type EventBus interface {
	Publish(args ...any)
	PublishE(args ...any) error
	Subscribe(handler any)
	Clear()
	SubscribersCount() int
}

var (
	ErrNoSubscribers        = errors.New("no matching subscribers")
	ErrInvalidHandlerReturn = errors.New("invalid handler return signature")
	ErrHandlerPanicked      = errors.New("event handler panicked")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type publisher struct {
	log *logrus.Entry

	mu       sync.RWMutex
	handlers []reflect.Value
}

// New returns a synchronous bus. Handlers run on the publishing goroutine in
// subscription order.
func New(log *logrus.Entry) EventBus {
	return &publisher{log: logging.OrNop(log)}
}

// MatchSignature reports whether handler can be called with args.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		param := t.In(i)
		if arg == nil {
			if param.Kind() != reflect.Interface && param.Kind() != reflect.Pointer {
				return false
			}
			continue
		}
		if !reflect.TypeOf(arg).AssignableTo(param) {
			return false
		}
	}
	return true
}

func (p *publisher) matching(args []any) []reflect.Value {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []reflect.Value
	for _, h := range p.handlers {
		if MatchSignature(h.Interface(), args) {
			out = append(out, h)
		}
	}
	return out
}

func callArgs(fn reflect.Value, args []any) []reflect.Value {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(fn.Type().In(i))
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}
	return in
}

// call runs one handler and turns a panic or a non-nil error return into an
// error.
func call(fn reflect.Value, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrHandlerPanicked, "%s: %v", fn.Type(), r)
		}
	}()
	out := fn.Call(callArgs(fn, args))
	switch {
	case len(out) == 0:
		return nil
	case len(out) > 1 || out[0].Type() != errorType:
		return errors.Wrapf(ErrInvalidHandlerReturn, "%s", fn.Type())
	case out[0].IsNil():
		return nil
	default:
		return out[0].Interface().(error)
	}
}

// Publish delivers args to every matching handler and logs handler failures.
func (p *publisher) Publish(args ...any) {
	handlers := p.matching(args)
	if len(handlers) == 0 {
		p.log.WithField("event", describe(args)).Debug("eventbus: no matching subscribers")
		return
	}
	for _, h := range handlers {
		if err := call(h, args); err != nil {
			p.log.WithError(err).WithField("event", describe(args)).Error("eventbus: handler failed")
		}
	}
}

// PublishE is Publish that reports handler failures to the caller. Every
// matching handler runs even when an earlier one fails.
func (p *publisher) PublishE(args ...any) error {
	handlers := p.matching(args)
	if len(handlers) == 0 {
		return ErrNoSubscribers
	}
	var errs []error
	for _, h := range handlers {
		if err := call(h, args); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (p *publisher) Subscribe(handler any) {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		panic("eventbus: handler must be a function")
	}
	p.mu.Lock()
	p.handlers = append(p.handlers, v)
	p.mu.Unlock()
}

func (p *publisher) Clear() {
	p.mu.Lock()
	p.handlers = nil
	p.mu.Unlock()
}

func (p *publisher) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}

func describe(args []any) string {
	types := make([]string, len(args))
	for i, a := range args {
		types[i] = fmt.Sprintf("%T", a)
	}
	return fmt.Sprint(types)
}
