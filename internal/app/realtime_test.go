package app

import (
	"context"
	"testing"
	"time"

	"github.com/khony/adzb/internal/realtime"
	"go.uber.org/zap"
)

func TestSelectAllEndsOnLatestOrganization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	logger := zap.NewNop()

	for i := 0; i < 300; i++ {
		mirrors := env.service.newMirrors(newRealtimeClient(nil, logger), logger)
		mirrors.selectAll(ctx, "org-a", logger)
		mirrors.selectAll(ctx, "org-b", logger)

		deadline := time.Now().Add(2 * time.Second)
		for {
			k, n, e := mirrors.keywords.Snapshot(), mirrors.negotiations.Snapshot(), mirrors.evidences.Snapshot()
			if k.State == realtime.Ready && n.State == realtime.Ready && e.State == realtime.Ready {
				if k.OrganizationID != "org-b" || n.OrganizationID != "org-b" || e.OrganizationID != "org-b" {
					t.Fatalf("switch %d ended on %q/%q/%q, want org-b", i, k.OrganizationID, n.OrganizationID, e.OrganizationID)
				}
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("switch %d never became ready", i)
			}
			time.Sleep(time.Millisecond)
		}
		for env.feed.Subscribers(realtime.TableKeywords, "org-a") != 0 {
			if time.Now().After(deadline) {
				t.Fatalf("switch %d left an org-a subscription open", i)
			}
			time.Sleep(time.Millisecond)
		}
		mirrors.close()
	}
}

func TestSelectAllEmptyReturnsToIdle(t *testing.T) {
	env := newTestEnv(t)
	logger := zap.NewNop()
	mirrors := env.service.newMirrors(newRealtimeClient(nil, logger), logger)

	mirrors.selectAll(context.Background(), "org-a", logger)
	mirrors.selectAll(context.Background(), "", logger)

	if snap := mirrors.keywords.Snapshot(); snap.State != realtime.Idle || snap.OrganizationID != "" {
		t.Fatalf("keywords snapshot = %+v, want idle", snap)
	}
}
