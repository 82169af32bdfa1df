package catalog

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/mnehpets/httprpc/service"
)

// Namespace prefixes the catalog's method names.
const Namespace = "catalog"

// Register adds the catalog's methods to svc under Namespace.
func (c *Catalog) Register(svc *service.Service) error {
	return svc.Register(Namespace, c)
}

type ItemsParams struct {
	_        struct{} `method:"items"`
	Category string
	MinPrice *float64
	InStock  *bool
	Tags     []string
	Limit    *int
}

// Items lists items matching every given filter, cheapest first. Each row
// carries its category as a nested object.
func (c *Catalog) Items(ctx context.Context, p ItemsParams) (*sql.Rows, error) {
	var (
		q    strings.Builder
		args []any
	)
	q.WriteString(`SELECT i.id, i.name, i.price, i.stock, i.added_at AS "addedAt",
		c.id AS "category.id", c.name AS "category.name"
		FROM item i JOIN category c ON c.id = i.category_id
		WHERE 1 = 1`)
	if p.Category != "" {
		q.WriteString(" AND c.name = ?")
		args = append(args, p.Category)
	}
	if p.MinPrice != nil {
		q.WriteString(" AND i.price >= ?")
		args = append(args, *p.MinPrice)
	}
	if p.InStock != nil {
		if *p.InStock {
			q.WriteString(" AND i.stock > 0")
		} else {
			q.WriteString(" AND i.stock = 0")
		}
	}
	if len(p.Tags) > 0 {
		q.WriteString(" AND i.id IN (SELECT item_id FROM item_tag WHERE tag IN (?")
		q.WriteString(strings.Repeat(", ?", len(p.Tags)-1))
		q.WriteString(") GROUP BY item_id HAVING COUNT(DISTINCT tag) = ?)")
		distinct := map[string]bool{}
		for _, t := range p.Tags {
			args = append(args, t)
			distinct[t] = true
		}
		args = append(args, len(distinct))
	}
	q.WriteString(" ORDER BY i.price, i.id LIMIT ?")
	limit := -1
	if p.Limit != nil {
		limit = *p.Limit
	}
	args = append(args, limit)
	return c.db.QueryContext(ctx, q.String(), args...)
}

type ItemParams struct {
	_  struct{} `method:"item"`
	ID int64
}

// Item is one catalog entry with its tags.
type Item struct {
	ID       int64
	Name     string
	Price    float64
	Stock    int64
	Category Category
	Tags     []string
	AddedAt  time.Time
}

// Fields lists the item's fields in presentation order.
func (it *Item) Fields() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		_ = yield("id", it.ID) &&
			yield("name", it.Name) &&
			yield("price", it.Price) &&
			yield("stock", it.Stock) &&
			yield("category", it.Category) &&
			yield("tags", it.Tags) &&
			yield("addedAt", it.AddedAt)
	}
}

type Category struct {
	ID   int64
	Name string
}

func (c Category) Fields() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		_ = yield("id", c.ID) && yield("name", c.Name)
	}
}

// Item returns one item by id.
func (c *Catalog) Item(ctx context.Context, p ItemParams) (*Item, error) {
	it := &Item{ID: p.ID, Tags: []string{}}
	var added int64
	err := c.db.QueryRowContext(ctx, `SELECT i.name, i.price, i.stock, i.added_at, c.id, c.name
		FROM item i JOIN category c ON c.id = i.category_id WHERE i.id = ?`, p.ID).
		Scan(&it.Name, &it.Price, &it.Stock, &added, &it.Category.ID, &it.Category.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.AddedAt = time.UnixMilli(added)

	rows, err := c.db.QueryContext(ctx, "SELECT tag FROM item_tag WHERE item_id = ? ORDER BY tag", p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		it.Tags = append(it.Tags, tag)
	}
	return it, rows.Err()
}

type CategoriesParams struct {
	_ struct{} `method:"categories"`
}

// Categories lists every category with its item count and total stock.
func (c *Catalog) Categories(ctx context.Context, _ CategoriesParams) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, `SELECT c.name, COUNT(i.id) AS items, COALESCE(SUM(i.stock), 0) AS stock
		FROM category c LEFT JOIN item i ON i.category_id = c.id
		GROUP BY c.id ORDER BY c.name`)
}

type AddItemParams struct {
	_        struct{} `method:"addItem"`
	Name     string   `param:"name,required"`
	Category string   `param:"category,required"`
	Price    float64
	Stock    *int64
	Tags     []string
}

// AddItem creates an item and returns its id. The category is created on
// first use.
func (c *Catalog) AddItem(ctx context.Context, p AddItemParams) (int64, error) {
	if err := c.authorize(ctx); err != nil {
		return 0, err
	}
	it := newItem{name: p.Name, category: p.Category, price: p.Price, tags: p.Tags}
	if p.Stock != nil {
		it.stock = *p.Stock
	}
	return c.insert(ctx, it)
}

type RestockParams struct {
	_     struct{} `method:"restock"`
	ID    int64
	Delta int64
}

// Restock adjusts an item's stock by delta. Stock never drops below zero.
func (c *Catalog) Restock(ctx context.Context, p RestockParams) error {
	if err := c.authorize(ctx); err != nil {
		return err
	}
	res, err := c.db.ExecContext(ctx,
		"UPDATE item SET stock = stock + ? WHERE id = ? AND stock + ? >= 0", p.Delta, p.ID, p.Delta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := c.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM item WHERE id = ?)", p.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInsufficient
}

type SummaryParams struct {
	_ struct{} `method:"summary"`
}

// Summary reports catalog-wide totals.
func (c *Catalog) Summary(ctx context.Context, _ SummaryParams) (iter.Seq2[string, any], error) {
	var items, stock int64
	var value float64
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(stock), 0), COALESCE(SUM(stock * price), 0) FROM item").
		Scan(&items, &stock, &value)
	if err != nil {
		return nil, err
	}
	return func(yield func(string, any) bool) {
		_ = yield("items", items) && yield("stock", stock) && yield("value", value)
	}, nil
}

func (c *Catalog) authorize(ctx context.Context) error {
	if !c.restricted {
		return nil
	}
	if p, ok := service.PrincipalFromContext(ctx); ok && p.HasRole(EditorRole) {
		return nil
	}
	return ErrForbidden
}
