package api

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"

	"github.com/davidbalbert/spfd/ospf"
	"github.com/davidbalbert/spfd/rpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Server struct {
	router   *ospf.Router
	shutdown context.CancelFunc
	socket   string
	version  string
}

func NewServer(router *ospf.Router, socket string, shutdown context.CancelFunc, version string) *Server {
	return &Server{
		router:   router,
		shutdown: shutdown,
		socket:   socket,
		version:  version,
	}
}

func (s *Server) Run(ctx context.Context) error {
	if err := os.Remove(s.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	listener, err := net.Listen("unix", s.socket)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listener)
}

// Serve answers requests on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	grpcServer := grpc.NewServer()
	rpc.RegisterShowServer(grpcServer, s)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return grpcServer.Serve(listener)
	})

	g.Go(func() error {
		<-ctx.Done()
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}

func (s *Server) GetVersion(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.version), nil
}

func (s *Server) Shutdown(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.shutdown()
	return &emptypb.Empty{}, nil
}

func (s *Server) RoutingTable(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	var routes []Route

	err := s.router.Do(ctx, func(r *ospf.Router) {
		for _, e := range r.RoutingTable() {
			routes = append(routes, routeFromEntry(e))
		}
	})
	if err != nil {
		return nil, status.FromContextError(err).Err()
	}

	return toList(routes)
}

func (s *Server) Database(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	var lsas []LSA

	err := s.router.Do(ctx, func(r *ospf.Router) {
		for _, a := range r.Areas() {
			id := a.ID.String()
			for _, lsa := range a.RouterLSAs() {
				lsas = append(lsas, lsaFromDatabase(id, lsa))
			}
			for _, lsa := range a.NetworkLSAs() {
				lsas = append(lsas, lsaFromDatabase(id, lsa))
			}
			for _, lsa := range a.SummaryLSAs() {
				lsas = append(lsas, lsaFromDatabase(id, lsa))
			}
		}

		for _, lsa := range r.ASExternalLSAs() {
			lsas = append(lsas, lsaFromDatabase("", lsa))
		}
	})
	if err != nil {
		return nil, status.FromContextError(err).Err()
	}

	return toList(lsas)
}

func (s *Server) Lookup(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	addr, err := netip.ParseAddr(req.GetValue())
	if err != nil || !addr.Is4() {
		return nil, status.Errorf(codes.InvalidArgument, "not an IPv4 address: %q", req.GetValue())
	}

	var (
		route Route
		found bool
	)

	err = s.router.Do(ctx, func(r *ospf.Router) {
		if e := r.Lookup(addr); e != nil {
			route = routeFromEntry(e)
			found = true
		}
	})
	if err != nil {
		return nil, status.FromContextError(err).Err()
	}

	if !found {
		return nil, status.Errorf(codes.NotFound, "no route to %s", addr)
	}

	return route.toStruct()
}
