package erp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/domain"
)

// Delivery is one delivery line previously registered in the ERP for a
// document reference; invoices and credit notes point back at it.
type Delivery struct {
	DocEntry   int     `json:"DocEntry"`
	BaseLine   int     `json:"BaseLine"`
	ItemCode   string  `json:"ItemCode"`
	LineStatus string  `json:"LineStatus"`
	StockPrice float64 `json:"StockPrice"`
}

// Directory exposes the ERP's read-only lookup views consumed by the
// field-mapping rules and the quantity reconciler.
type Directory interface {
	CostingCode(ctx context.Context, warehouse string) (string, error)
	BinEntry(ctx context.Context, warehouse string) (int, error)
	LotEntry(ctx context.Context, lot string) (int, error)
	PackagingUnits(ctx context.Context, itemCode string) (int, error)
	InvoiceEntry(ctx context.Context, invoiceNo string) (int, error)
	Deliveries(ctx context.Context, reference string) ([]Delivery, error)
	Movements(ctx context.Context, reference string) ([]domain.Movement, error)
}

const (
	branchView    = "sml.svc/BranchQuery"
	deliveryView  = "sml.svc/DeliveryInfoQuery"
	binView       = "sml.svc/BinLocationQuery"
	lotView       = "sml.svc/LotQuery"
	packagingView = "sml.svc/PackagingQuery"
	invoiceView   = "sml.svc/InvoiceQuery"
	movementView  = "sml.svc/LotAllocationQuery"
)

type branchRow struct {
	WhsCode    string `json:"WhsCode"`
	Dimension1 string `json:"U_Dimension1"`
}

type binRow struct {
	WhsCode  string `json:"WhsCode"`
	AbsEntry int    `json:"AbsEntry"`
}

type lotRow struct {
	DistNumber string `json:"DistNumber"`
	AbsEntry   int    `json:"AbsEntry"`
}

type packagingRow struct {
	ItemCode string `json:"ItemCode"`
	NumInBuy int    `json:"NumInBuy"`
}

type invoiceRow struct {
	NumAtCard string `json:"NumAtCard"`
	DocEntry  int    `json:"DocEntry"`
}

type movementRow struct {
	LineNum  int    `json:"LineNum"`
	ItemCode string `json:"ItemCode"`
	Quantity int    `json:"Quantity"`
	Lot      string `json:"DistNumber"`
	DocEntry int    `json:"DocEntry"`
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// DirectoryClient caches branch and delivery lookups for the lifetime of
// a run; the views change far more slowly than a batch executes.
type DirectoryClient struct {
	client *Client
	logger *zap.Logger

	mu         sync.Mutex
	branches   map[string]branchRow
	deliveries map[string][]Delivery
}

var _ Directory = (*DirectoryClient)(nil)

func NewDirectoryClient(client *Client, logger *zap.Logger) *DirectoryClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryClient{
		client:     client,
		logger:     logger,
		deliveries: make(map[string][]Delivery),
	}
}

// CostingCode resolves the accounting dimension of a warehouse from the
// branch view, loading the whole view on first use.
func (d *DirectoryClient) CostingCode(ctx context.Context, warehouse string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.branches == nil {
		rows, err := fetchAll[branchRow](ctx, d.client, branchView)
		if err != nil {
			return "", err
		}
		d.branches = make(map[string]branchRow, len(rows))
		for _, row := range rows {
			d.branches[row.WhsCode] = row
		}
		d.logger.Info("loaded erp branches", zap.Int("count", len(rows)))
	}

	branch, ok := d.branches[warehouse]
	if !ok {
		return "", fmt.Errorf("%w: warehouse %q has no branch entry", domain.ErrNotFound, warehouse)
	}
	return branch.Dimension1, nil
}

func (d *DirectoryClient) BinEntry(ctx context.Context, warehouse string) (int, error) {
	rows, err := fetchAll[binRow](ctx, d.client, fmt.Sprintf("%s?$filter=WhsCode eq '%s'", binView, warehouse))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: no bin entry for warehouse %q", domain.ErrNotFound, warehouse)
	}
	return rows[0].AbsEntry, nil
}

func (d *DirectoryClient) LotEntry(ctx context.Context, lot string) (int, error) {
	rows, err := fetchAll[lotRow](ctx, d.client, fmt.Sprintf("%s?$filter=DistNumber eq '%s'", lotView, lot))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: no entry for lot %q", domain.ErrNotFound, lot)
	}
	return rows[0].AbsEntry, nil
}

func (d *DirectoryClient) PackagingUnits(ctx context.Context, itemCode string) (int, error) {
	rows, err := fetchAll[packagingRow](ctx, d.client, fmt.Sprintf("%s?$filter=ItemCode eq '%s'", packagingView, itemCode))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || rows[0].NumInBuy <= 0 {
		return 0, fmt.Errorf("%w: no packaging info for item %q", domain.ErrNotFound, itemCode)
	}
	return rows[0].NumInBuy, nil
}

// InvoiceEntry resolves an invoice number printed on the source document
// to the DocEntry the ERP assigned when the invoice was registered.
func (d *DirectoryClient) InvoiceEntry(ctx context.Context, invoiceNo string) (int, error) {
	rows, err := fetchAll[invoiceRow](ctx, d.client, fmt.Sprintf("%s?$filter=NumAtCard eq '%s'", invoiceView, invoiceNo))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: no invoice registered with number %q", domain.ErrNotFound, invoiceNo)
	}
	return rows[0].DocEntry, nil
}

// Deliveries lists the delivery lines registered for a document
// reference, cached per reference within the run.
func (d *DirectoryClient) Deliveries(ctx context.Context, reference string) ([]Delivery, error) {
	d.mu.Lock()
	if cached, ok := d.deliveries[reference]; ok {
		d.mu.Unlock()
		return cached, nil
	}
	d.mu.Unlock()

	rows, err := fetchAll[Delivery](ctx, d.client, fmt.Sprintf("%s?$filter=U_Reference eq '%s'", deliveryView, reference))
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.deliveries[reference] = rows
	d.mu.Unlock()
	return rows, nil
}

// Movements returns the authoritative elementary movements the ERP
// recorded for a document reference.
func (d *DirectoryClient) Movements(ctx context.Context, reference string) ([]domain.Movement, error) {
	rows, err := fetchAll[movementRow](ctx, d.client, fmt.Sprintf("%s?$filter=U_Reference eq '%s'", movementView, reference))
	if err != nil {
		return nil, err
	}

	movements := make([]domain.Movement, 0, len(rows))
	for _, row := range rows {
		movements = append(movements, domain.Movement{
			LineNum:  row.LineNum,
			ItemCode: row.ItemCode,
			Quantity: row.Quantity,
			Lot:      row.Lot,
			DocEntry: row.DocEntry,
		})
	}
	return movements, nil
}

// fetchAll follows the view's pagination links until the result set is
// exhausted.
func fetchAll[T any](ctx context.Context, client *Client, endpoint string) ([]T, error) {
	var all []T
	next := endpoint
	for next != "" {
		var parsed page[T]
		if _, err := client.request(ctx, http.MethodGet, next, nil, &parsed); err != nil {
			return nil, err
		}
		all = append(all, parsed.Value...)

		next = ""
		if parsed.NextLink != "" {
			// The next link comes back absolute; keep only the path
			// relative to the service base.
			if idx := strings.Index(parsed.NextLink, "sml.svc/"); idx >= 0 {
				next = parsed.NextLink[idx:]
			}
		}
	}
	return all, nil
}
