// Package vsphere reports on vCenter virtual machine resources and drives
// bulk VM deployment from a CSV plan.
package vsphere

import (
	"context"
	"fmt"
	"net/url"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/vim25/soap"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
)

// Connect opens an authenticated vCenter session. Callers must Logout when
// done.
func Connect(ctx context.Context, cfg config.VCenterConfig) (*govmomi.Client, error) {
	u, err := soap.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse vcenter url %s: %w", cfg.URL, err)
	}
	u.User = url.UserPassword(cfg.User, cfg.Password)

	client, err := govmomi.NewClient(ctx, u, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", u.Host, err)
	}
	return client, nil
}
