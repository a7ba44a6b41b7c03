package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates missing tables and applies additive column changes.
// Every statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	s.logger.Info("schema ready")
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.RegisteredAt.IsZero() {
		customer.RegisteredAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO clientes (nome, telefone, data_cadastro)
		VALUES ($1, $2, $3)
		RETURNING codigo_cliente
	`, customer.Name, customer.Phone, customer.RegisteredAt).Scan(&customer.Code)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, code int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT codigo_cliente, nome, telefone, data_cadastro
		FROM clientes
		WHERE codigo_cliente = $1
	`, code).Scan(&c.Code, &c.Name, &c.Phone, &c.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT codigo_cliente, nome, telefone, data_cadastro
		FROM clientes
		ORDER BY codigo_cliente
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.Code, &c.Name, &c.Phone, &c.RegisteredAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) CountCustomers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clientes`).Scan(&count)
	return count, err
}

func (s *Store) DeleteCustomer(ctx context.Context, code int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT true FROM clientes WHERE codigo_cliente = $1 FOR UPDATE
	`, code).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	var sales int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM vendas WHERE cliente_id = $1`, code).Scan(&sales); err != nil {
		return err
	}
	if sales > 0 {
		return fmt.Errorf("%w: customer %d has %d sales", store.ErrConflict, code, sales)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM clientes WHERE codigo_cliente = $1`, code); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: customer %d is referenced", store.ErrConflict, code)
		}
		return err
	}
	return tx.Commit()
}

const productColumns = `id, tipo, cor, tamanho, preco_custo, preco_venda, quantidade, promocao, preco_promocional`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var promo decimal.NullDecimal
	if err := row.Scan(&p.ID, &p.Type, &p.Color, &p.Size, &p.CostPrice, &p.SalePrice, &p.Quantity, &p.Promotion, &promo); err != nil {
		return p, err
	}
	if promo.Valid {
		price := promo.Decimal
		p.PromotionalPrice = &price
	}
	return p, nil
}

func nullPromo(p domain.Product) decimal.NullDecimal {
	if p.PromotionalPrice == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *p.PromotionalPrice, Valid: true}
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO produtos (tipo, cor, tamanho, preco_custo, preco_venda, quantidade, promocao, preco_promocional)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, product.Type, product.Color, product.Size, product.CostPrice, product.SalePrice, product.Quantity, product.Promotion, nullPromo(product)).Scan(&product.ID)
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM produtos WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM produtos ORDER BY tipo, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProduct writes the descriptive fields and prices of product. Stock is
// only written when quantity is non-nil, so a concurrent sale's decrement is
// never overwritten by a stale read.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product, quantity *int) (*domain.Product, error) {
	var qty sql.NullInt64
	if quantity != nil {
		qty = sql.NullInt64{Int64: int64(*quantity), Valid: true}
	}
	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE produtos
		SET tipo = $2, cor = $3, tamanho = $4, preco_custo = $5, preco_venda = $6,
			quantidade = COALESCE($7::INTEGER, quantidade), promocao = $8, preco_promocional = $9
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Type, product.Color, product.Size, product.CostPrice, product.SalePrice, qty, product.Promotion, nullPromo(product)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		return nil, err
	}
	return &updated, nil
}

// SetPromotion touches only the promotion columns. A nil price clears the
// promotion; otherwise the price must stay below the stored sale price.
func (s *Store) SetPromotion(ctx context.Context, id int64, promoPrice *decimal.Decimal) (*domain.Product, error) {
	var (
		updated domain.Product
		err     error
	)
	if promoPrice == nil {
		updated, err = scanProduct(s.db.QueryRowContext(ctx, `
			UPDATE produtos SET promocao = FALSE, preco_promocional = NULL
			WHERE id = $1
			RETURNING `+productColumns, id))
	} else {
		updated, err = scanProduct(s.db.QueryRowContext(ctx, `
			UPDATE produtos SET promocao = TRUE, preco_promocional = $2
			WHERE id = $1 AND preco_venda > $2
			RETURNING `+productColumns, id, *promoPrice))
	}
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetProduct(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: promotional price must be below sale price", store.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM produtos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CommitSale writes the header, the items and the stock decrements in one
// serializable transaction. Product rows are locked before stock is checked.
func (s *Store) CommitSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrValidation)
	}

	requested := make(map[int64]int, len(draft.Items))
	ids := make([]int64, 0, len(draft.Items))
	total := decimal.Zero
	for _, item := range draft.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", store.ErrValidation)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: unit price must not be negative", store.ErrValidation)
		}
		if _, seen := requested[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
		total = total.Add(item.Subtotal())
	}
	if !total.Equal(draft.Total) {
		return nil, fmt.Errorf("%w: sale total %s does not match items %s", store.ErrValidation, draft.Total.StringFixed(2), total.StringFixed(2))
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var customerExists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT true FROM clientes WHERE codigo_cliente = $1
	`, draft.CustomerCode).Scan(&customerExists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %d", store.ErrNotFound, draft.CustomerCode)
		}
		return nil, err
	}

	stockRows, err := tx.QueryContext(ctx, `
		SELECT id, quantidade
		FROM produtos
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	stock := make(map[int64]int, len(ids))
	for stockRows.Next() {
		var id int64
		var qty int
		if err := stockRows.Scan(&id, &qty); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		stock[id] = qty
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	for _, id := range ids {
		available, ok := stock[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, id)
		}
		if requested[id] > available {
			return nil, store.NewStockError(id, requested[id], available)
		}
	}

	sale := domain.Sale{
		CustomerCode: draft.CustomerCode,
		Total:        total,
		CreatedAt:    draft.CreatedAt,
		Items:        make([]domain.SaleItem, 0, len(draft.Items)),
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO vendas (cliente_id, valor_total, data_venda)
		VALUES ($1, $2, $3)
		RETURNING id
	`, sale.CustomerCode, sale.Total, sale.CreatedAt).Scan(&sale.ID); err != nil {
		return nil, err
	}

	for _, item := range draft.Items {
		item.SaleID = sale.ID
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO itens_venda (venda_id, produto_id, quantidade, valor_unitario)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, item.SaleID, item.ProductID, item.Quantity, item.UnitPrice).Scan(&item.ID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE produtos SET quantidade = quantidade - $2 WHERE id = $1
		`, item.ProductID, item.Quantity); err != nil {
			if isCheckViolation(err) {
				return nil, store.NewStockError(item.ProductID, requested[item.ProductID], stock[item.ProductID])
			}
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cliente_id, valor_total, data_venda
		FROM vendas
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.CustomerCode, &sale.Total, &sale.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.loadItems(ctx, []int64{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	where, args := rangeClause("data_venda", "cliente_id", filter.CustomerCode, filter.From, filter.To)
	query := `SELECT id, cliente_id, valor_total, data_venda FROM vendas` + where + ` ORDER BY data_venda DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, 64)
	ids := make([]int64, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.CustomerCode, &sale.Total, &sale.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(ids) == 0 {
		return sales, nil
	}
	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadItems(ctx context.Context, saleIDs []int64) (map[int64][]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, venda_id, produto_id, quantidade, valor_unitario
		FROM itens_venda
		WHERE venda_id = ANY($1)
		ORDER BY venda_id, id
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.SaleItem, len(saleIDs))
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		out[item.SaleID] = append(out[item.SaleID], item)
	}
	return out, rows.Err()
}

func (s *Store) GetPaidAmount(ctx context.Context, saleID int64) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT SUM(valor_pago) FROM pagamentos WHERE venda_id = v.id), 0)
		FROM vendas v
		WHERE v.id = $1
	`, saleID).Scan(&paid)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, store.ErrNotFound
	}
	return paid, err
}

// CreatePayment locks the sale row so two payments for the same sale cannot
// both pass the balance check.
func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if !payment.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be greater than zero", store.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var total decimal.Decimal
	if err := tx.QueryRowContext(ctx, `
		SELECT cliente_id, valor_total FROM vendas WHERE id = $1 FOR UPDATE
	`, payment.SaleID).Scan(&payment.CustomerCode, &total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %d", store.ErrNotFound, payment.SaleID)
		}
		return nil, err
	}

	var paid decimal.Decimal
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(valor_pago), 0) FROM pagamentos WHERE venda_id = $1
	`, payment.SaleID).Scan(&paid); err != nil {
		return nil, err
	}
	balance := total.Sub(paid)
	if payment.Amount.GreaterThan(balance) {
		return nil, fmt.Errorf("%w: payment %s exceeds remaining balance %s", store.ErrConflict, payment.Amount.StringFixed(2), balance.StringFixed(2))
	}

	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO pagamentos (cliente_id, venda_id, valor_pago, data_pagamento)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, payment.CustomerCode, payment.SaleID, payment.Amount, payment.PaidAt).Scan(&payment.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Store) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	where, args := rangeClause("data_pagamento", "cliente_id", filter.CustomerCode, filter.From, filter.To)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cliente_id, venda_id, valor_pago, data_pagamento
		FROM pagamentos`+where+`
		ORDER BY data_pagamento, id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 64)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.CustomerCode, &p.SaleID, &p.Amount, &p.PaidAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const balancesCTE = `
	WITH saldos AS (
		SELECT v.id, v.data_venda, v.cliente_id, c.nome, v.valor_total,
			COALESCE((SELECT SUM(p.valor_pago) FROM pagamentos p WHERE p.venda_id = v.id), 0) AS pago
		FROM vendas v
		JOIN clientes c ON c.codigo_cliente = v.cliente_id
		WHERE ($1::BIGINT IS NULL OR v.cliente_id = $1)
	)
`

func (s *Store) ListReceivables(ctx context.Context, customerCode *int64) ([]domain.Receivable, error) {
	rows, err := s.db.QueryContext(ctx, balancesCTE+`
		SELECT id, data_venda, cliente_id, nome, valor_total, pago
		FROM saldos
		WHERE valor_total > pago
		ORDER BY data_venda, id
	`, nullableCode(customerCode))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Receivable, 0, 32)
	for rows.Next() {
		var r domain.Receivable
		if err := rows.Scan(&r.SaleID, &r.SaleDate, &r.CustomerCode, &r.CustomerName, &r.Total, &r.Paid); err != nil {
			return nil, err
		}
		r.Balance = r.Total.Sub(r.Paid)
		r.Status = domain.SaleStatusOpen
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) OutstandingTotal(ctx context.Context, customerCode *int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, balancesCTE+`
		SELECT COALESCE(SUM(valor_total - pago), 0)
		FROM saldos
		WHERE valor_total > pago
	`, nullableCode(customerCode)).Scan(&total)
	return total, err
}

func (s *Store) SalesTotalSince(ctx context.Context, from time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(valor_total), 0) FROM vendas WHERE data_venda >= $1
	`, from).Scan(&total)
	return total, err
}

func (s *Store) PaymentsTotalSince(ctx context.Context, from time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(valor_pago), 0) FROM pagamentos WHERE data_pagamento >= $1
	`, from).Scan(&total)
	return total, err
}

func (s *Store) ProfitSince(ctx context.Context, from time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM((i.valor_unitario - p.preco_custo) * i.quantidade), 0)
		FROM itens_venda i
		JOIN vendas v ON v.id = i.venda_id
		JOIN produtos p ON p.id = i.produto_id
		WHERE v.data_venda >= $1
	`, from).Scan(&total)
	return total, err
}

func rangeClause(timeColumn string, customerColumn string, customerCode *int64, from *time.Time, to *time.Time) (string, []any) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if customerCode != nil {
		args = append(args, *customerCode)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", customerColumn, len(args)))
	}
	if from != nil {
		args = append(args, *from)
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", timeColumn, len(args)))
	}
	if to != nil {
		args = append(args, *to)
		conditions = append(conditions, fmt.Sprintf("%s <= $%d", timeColumn, len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullableCode(code *int64) sql.NullInt64 {
	if code == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *code, Valid: true}
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503"
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == "23514"
}
