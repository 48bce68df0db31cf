package handler

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/library-lending/internal/adapter/auth"
	"github.com/rl1809/library-lending/internal/core/domain"
)

func newGRPCClient(t *testing.T, f *fixture) *LendingServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterLendingServiceServer(srv, NewGRPCHandler(zap.NewNop(), f.lending, f.query, auth.NewJWTResolver(testSecret)))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewLendingServiceClient(conn)
}

func withToken(tok string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), AuthorizationMetadata, "Bearer "+tok)
}

func TestGRPC_BorrowReturnList(t *testing.T) {
	f := newFixture(t)
	f.store.SeedBook(domain.Book{Title: "Dune", Stock: 1, IsAvailable: true})
	client := newGRPCClient(t, f)
	ctx := withToken(token(t, domain.LevelLibrarian))

	borrowed, err := client.Borrow(ctx, &BorrowRequest{UserID: 5, BookID: 1})
	require.NoError(t, err)
	assert.Equal(t, msgBorrowed, borrowed.Message)
	assert.NotZero(t, borrowed.LendingID)

	_, err = client.Borrow(ctx, &BorrowRequest{UserID: 6, BookID: 1})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	returned := string(domain.LendingStatusReturned)
	updated, err := client.UpdateLending(ctx, &UpdateLendingRequest{LendingID: borrowed.LendingID, Status: &returned})
	require.NoError(t, err)
	assert.Equal(t, msgUpdated, updated.Message)

	list, err := client.ListLendings(ctx, &ListLendingsRequest{UserID: 5})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, domain.LendingStatusReturned, list.Data[0].Status)
	require.NotNil(t, list.Data[0].ReturnedDate)

	got, _ := f.store.Book(1)
	assert.Equal(t, 1, got.Stock)
	assert.True(t, got.IsAvailable)
}

func TestGRPC_ErrorCodes(t *testing.T) {
	f := newFixture(t)
	f.store.SeedBook(domain.Book{Title: "Dune", Stock: 1, IsAvailable: true})
	client := newGRPCClient(t, f)

	_, err := client.Borrow(context.Background(), &BorrowRequest{UserID: 5, BookID: 1})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.Borrow(withToken(token(t, domain.LevelReader)), &BorrowRequest{UserID: 5, BookID: 1})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	librarian := withToken(token(t, domain.LevelLibrarian))
	_, err = client.Borrow(librarian, &BorrowRequest{UserID: 0, BookID: 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Borrow(librarian, &BorrowRequest{UserID: 5, BookID: 77})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.ListLendings(librarian, &ListLendingsRequest{UserID: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	list, err := client.ListLendings(librarian, &ListLendingsRequest{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, msgNoLendings, list.Message)
	assert.Empty(t, list.Data)
}
