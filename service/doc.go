// Package service resolves and invokes named methods with loosely typed
// HTTP parameters.
//
// # Basic Usage
//
// Create a service, register methods, and serve via HTTP:
//
//	svc := service.New()
//	if err := svc.Register("math", &MathMethods{}); err != nil {
//	    log.Fatal(err)
//	}
//	e := service.NewEndpoint(svc)
//	http.Handle("/rpc/{method}", endpoint.Handler(e.Endpoint))
//
// Methods are defined on a struct with a params type:
//
//	type AddParams struct {
//	    A int
//	    B int
//	}
//
//	func (m *MathMethods) Add(ctx context.Context, params AddParams) (int, error) {
//	    return params.A + params.B, nil
//	}
//
// and called as GET /rpc/math.Add?a=2&b=3.
//
// # Descriptors
//
// Register builds a Method descriptor for each qualifying method once. A
// descriptor can also be written by hand and added with Add:
//
//	svc.Add(service.Method{
//	    Name:    "math.Sum",
//	    Params:  []service.Param{{Name: "n", Shape: service.List(service.Int)}},
//	    Returns: service.Any,
//	    Invoke: func(ctx context.Context, args service.Args) (any, error) {
//	        var sum int64
//	        for _, n := range args.List("n") {
//	            sum += n.(int64)
//	        }
//	        return sum, nil
//	    },
//	})
//
// Method names are unique. Adding or registering a name twice fails with an
// rpcerr resolution error at registration, not at the first call.
//
// # Coercion
//
// Decoded parameters are coerced to the declared shapes before the method
// runs. Integers must fit the target size and floats must be finite; boolean
// parameters accept only "true" and "false". A single value is promoted to
// a one-element list, and an absent list or map is empty rather than null.
// Parameters the method does not declare are ignored.
//
// # Errors
//
// Failures carry an rpcerr kind. The method body's own errors, and its
// panics, are wrapped as invocation errors that preserve the cause.
package service
