package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/rl1809/library-lending/internal/adapter/auth"
	"github.com/rl1809/library-lending/internal/adapter/handler"
	"github.com/rl1809/library-lending/internal/adapter/storage"
	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
)

// borrower is satisfied by the in-process service and the gRPC client.
type borrower interface {
	borrow(ctx context.Context, userID int64) (int64, error)
	giveBack(ctx context.Context, lendingID int64) error
}

type localBorrower struct {
	svc       *service.LendingService
	principal *domain.Principal
	bookID    int64
}

func (b localBorrower) borrow(ctx context.Context, userID int64) (int64, error) {
	l, err := b.svc.Borrow(ctx, b.principal, domain.BorrowCommand{UserID: userID, BookID: b.bookID})
	return l.ID, err
}

func (b localBorrower) giveBack(ctx context.Context, lendingID int64) error {
	returned := domain.LendingStatusReturned
	return b.svc.UpdateLending(ctx, b.principal, domain.UpdateLendingCommand{LendingID: lendingID, Status: &returned})
}

type grpcBorrower struct {
	client *handler.LendingServiceClient
	token  string
	bookID int64
}

func (b grpcBorrower) borrow(ctx context.Context, userID int64) (int64, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, handler.AuthorizationMetadata, "Bearer "+b.token)
	resp, err := b.client.Borrow(ctx, &handler.BorrowRequest{UserID: userID, BookID: b.bookID})
	if err != nil {
		return 0, err
	}
	return resp.LendingID, nil
}

func (b grpcBorrower) giveBack(ctx context.Context, lendingID int64) error {
	ctx = metadata.AppendToOutgoingContext(ctx, handler.AuthorizationMetadata, "Bearer "+b.token)
	returned := string(domain.LendingStatusReturned)
	_, err := b.client.UpdateLending(ctx, &handler.UpdateLendingRequest{LendingID: lendingID, Status: &returned})
	return err
}

func main() {
	var (
		grpcAddr      = flag.String("grpc-addr", "", "lending service address; empty runs against an in-process memory store")
		jwtSecret     = flag.String("jwt-secret", os.Getenv("LIBRARY_AUTH_JWT_SECRET"), "secret used to sign the librarian token")
		bookID        = flag.Int64("book-id", 1, "book to borrow when targeting a server")
		initialStock  = flag.Int("stock", 20, "copies seeded in memory mode")
		totalRequests = flag.Int("requests", 50, "concurrent borrow requests")
	)
	flag.Parse()

	ctx := context.Background()
	librarian := &domain.Principal{ID: 1, Email: "stress@library.local", Level: domain.LevelLibrarian}

	var (
		b     borrower
		store *storage.MemoryAdapter
	)
	if *grpcAddr == "" {
		store = storage.NewMemoryAdapter()
		book := store.SeedBook(domain.Book{Title: "Stress Test", Stock: *initialStock, IsAvailable: *initialStock > 0})
		svc := service.NewLendingService(zap.NewNop(), store, store)
		b = localBorrower{svc: svc, principal: librarian, bookID: book.ID}
	} else {
		token, err := auth.Issue(*jwtSecret, *librarian, time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "dial %s: %v\n", *grpcAddr, err)
			os.Exit(1)
		}
		defer conn.Close()
		b = grpcBorrower{client: handler.NewLendingServiceClient(conn), token: token, bookID: *bookID}
	}

	var successCount, failCount atomic.Int32
	var mu sync.Mutex
	var lent []int64

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			id, err := b.borrow(ctx, userID)
			if err != nil {
				failCount.Add(1)
				return
			}
			successCount.Add(1)
			mu.Lock()
			lent = append(lent, id)
			mu.Unlock()
		}(int64(i + 1))
	}
	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// return every copy twice at once; stock must only grow by one per lending
	var returnErrs atomic.Int32
	for _, id := range lent {
		for range 2 {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				if err := b.giveBack(ctx, id); err != nil {
					returnErrs.Add(1)
				}
			}(id)
		}
	}
	wg.Wait()
	fmt.Printf("Returns:          %d lendings, %d rejected duplicates\n", len(lent), returnErrs.Load())

	if store == nil {
		return
	}

	failed := false
	if success == int32(min(*initialStock, *totalRequests)) {
		fmt.Printf("PASS: exactly %d borrows succeeded\n", success)
	} else {
		fmt.Printf("FAIL: expected %d successful borrows, got %d\n", min(*initialStock, *totalRequests), success)
		failed = true
	}

	book, _ := store.Book(1)
	if book.Stock == *initialStock && book.IsAvailable == (book.Stock > 0) {
		fmt.Printf("PASS: stock restored to %d\n", book.Stock)
	} else {
		fmt.Printf("FAIL: expected stock %d, got %d (available=%v)\n", *initialStock, book.Stock, book.IsAvailable)
		failed = true
	}
	if failed {
		os.Exit(1)
	}
}
