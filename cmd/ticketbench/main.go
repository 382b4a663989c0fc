package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/supportdesk/config"
	"github.com/d60-Lab/supportdesk/internal/cache"
	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/notify"
	"github.com/d60-Lab/supportdesk/internal/repository"
	"github.com/d60-Lab/supportdesk/internal/service"
	"github.com/d60-Lab/supportdesk/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

// run 用 conc 个协程执行 n 次 op，返回总耗时与每次耗时
func run(n, conc int, op func(i int)) (time.Duration, []time.Duration) {
	if conc > n {
		conc = n
	}
	feed := make(chan int, n)
	for i := 0; i < n; i++ {
		feed <- i
	}
	close(feed)

	out := make(chan time.Duration, n)
	done := make(chan struct{}, conc)
	t0 := time.Now()
	for w := 0; w < conc; w++ {
		go func() {
			for i := range feed {
				st := time.Now()
				op(i)
				out <- time.Since(st)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < conc; w++ {
		<-done
	}
	total := time.Since(t0)
	close(out)
	recs := make([]time.Duration, 0, n)
	for d := range out {
		recs = append(recs, d)
	}
	return total, recs
}

func report(name string, total time.Duration, recs []time.Duration) {
	if len(recs) == 0 {
		return
	}
	fmt.Printf("%-22s total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
		name, total, total/time.Duration(len(recs)), pct(recs, 0.50), pct(recs, 0.95), pct(recs, 0.99))
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	if err := repository.Migrate(db); err != nil {
		panic(err)
	}
	ctx := context.Background()
	rdb := cache.NewRedisClient(ctx, cfg.Redis.URL)
	defer rdb.Close()

	N := envInt("N", 2000)
	CONC := envInt("CONC", 8)
	USERS := envInt("USERS", 100)
	REPLIES := envInt("REPLIES", 2)

	threads := repository.NewThreadRepository(db)
	users := repository.NewUserRepository(db)
	audits := repository.NewAuditRepository(db)
	unread := cache.NewUnreadCache(rdb, cfg.Redis.UnreadTTL)
	dispatcher := notify.NewDispatcher(notify.LogNotifier{}, N+1)
	stop := dispatcher.Start(cfg.Email.Workers)

	tickets := service.NewTicketService(threads, unread, dispatcher, service.TicketOptions{AppName: "bench", FrontendURL: cfg.Email.FrontendURL})
	admin := service.NewAdminTicketService(threads, users, audits, unread, notify.LogNotifier{}, "bench")

	seeded := make([]*model.User, USERS)
	for i := range seeded {
		id := uuid.NewString()
		u := &model.User{
			ID:                        id,
			Email:                     "bench-" + id[:8] + "@example.com",
			PasswordHash:              "x",
			FullName:                  "bench " + id[:8],
			IsActive:                  true,
			EmailNotificationsEnabled: true,
		}
		if err := users.Create(ctx, u); err != nil {
			panic(err)
		}
		seeded[i] = u
	}
	staff := service.Actor{UserID: seeded[0].ID, Email: seeded[0].Email}

	ids := make([]string, N)
	createTotal, createRecs := run(N, CONC, func(i int) {
		u := seeded[i%USERS]
		s, err := tickets.CreateThread(ctx, u, fmt.Sprintf("bench thread %d", i), "load test message")
		if err == nil {
			ids[i] = s.ID
		}
	})

	replyTotal, replyRecs := run(N*REPLIES, CONC, func(i int) {
		if id := ids[i%N]; id != "" {
			_, _ = admin.Reply(ctx, staff, id, "support reply")
		}
	})

	listTotal, listRecs := run(USERS, CONC, func(i int) {
		_, _ = tickets.ListThreads(ctx, seeded[i].ID)
	})

	// 第一轮未命中缓存，第二轮命中
	missTotal, missRecs := run(USERS, CONC, func(i int) {
		unread.Invalidate(ctx, seeded[i].ID)
		_, _ = tickets.UnreadCount(ctx, seeded[i].ID)
	})
	hitTotal, hitRecs := run(USERS, CONC, func(i int) {
		_, _ = tickets.UnreadCount(ctx, seeded[i].ID)
	})

	getTotal, getRecs := run(N, CONC, func(i int) {
		if id := ids[i]; id != "" {
			_, _ = tickets.GetThread(ctx, seeded[i%USERS].ID, id)
		}
	})

	pageTotal, pageRecs := run(20, 1, func(i int) {
		_, _ = admin.ListThreads(ctx, service.AdminThreadFilter{Page: i%5 + 1, PageSize: service.DefaultPageSize})
	})

	_ = stop(ctx)

	fmt.Printf("N=%d, CONC=%d, USERS=%d, REPLIES=%d\n", N, CONC, USERS, REPLIES)
	report("create thread", createTotal, createRecs)
	report("admin reply", replyTotal, replyRecs)
	report("user list", listTotal, listRecs)
	report("unread (cache miss)", missTotal, missRecs)
	report("unread (cache hit)", hitTotal, hitRecs)
	report("user get (mark read)", getTotal, getRecs)
	report("admin list page", pageTotal, pageRecs)
	hits, misses := unread.Stats()
	fmt.Printf("unread cache: hits=%d misses=%d\n", hits, misses)
}
