package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/my3rdstory/satoshop-sub001/internal/model"
	"github.com/my3rdstory/satoshop-sub001/internal/render"
)

// consoleUI renders the checkout workflow to stdout for the demo.
type consoleUI struct {
	mu        sync.Mutex
	navigated chan struct{}
	navOnce   sync.Once
}

func newConsoleUI() *consoleUI {
	return &consoleUI{navigated: make(chan struct{})}
}

func (u *consoleUI) ShowInvoice(inv model.Invoice, walletURI string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	fmt.Println("invoice:", inv.PaymentRequest)
	fmt.Println("wallet: ", walletURI)
	if png, err := render.InvoiceQR(inv.PaymentRequest); err == nil {
		fmt.Printf("qr:      %d bytes (png)\n", len(png))
	}
	fmt.Println("expires:", inv.ExpiresAt.Format(time.RFC3339))
}

func (u *consoleUI) ShowProgress(stage model.Stage, lines []render.Line) {
	u.mu.Lock()
	defer u.mu.Unlock()

	fmt.Println(strings.Join(render.StageMarkers(stage), "  "))
	for _, line := range lines {
		fmt.Printf("  [%d/%s] %s (%s)\n", line.Stage, line.Status, line.Text, line.Code)
	}
}

func (u *consoleUI) ShowCountdown(remaining time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Printf("\rtime left: %s", render.Countdown(remaining))
	if remaining == 0 {
		fmt.Println()
	}
}

func (u *consoleUI) ShowError(kind, nextAction, message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if message != "" {
		fmt.Printf("error: %s: %s (next: %s)\n", kind, message, nextAction)
		return
	}
	fmt.Printf("error: %s (next: %s)\n", kind, nextAction)
}

func (u *consoleUI) Navigate(url string) {
	u.mu.Lock()
	fmt.Println("\norder confirmed, redirecting to", url)
	u.mu.Unlock()
	u.navOnce.Do(func() { close(u.navigated) })
}

func (u *consoleUI) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Println("\ncheckout reset")
}

func (u *consoleUI) Reload() {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Println("reloading page state")
}
