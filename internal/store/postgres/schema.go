package postgres

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL,
	available BOOLEAN NOT NULL DEFAULT TRUE,
	auto_created BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_products_tenant_name ON products (tenant_id, lower(name));

CREATE TABLE IF NOT EXISTS price_history (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id),
	price NUMERIC(12,2) NOT NULL,
	valid_from TIMESTAMPTZ NOT NULL,
	valid_to TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_price_history_open ON price_history (product_id) WHERE valid_to IS NULL;

CREATE TABLE IF NOT EXISTS payment_methods (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_customers_tenant_name ON customers (tenant_id, lower(name));

CREATE TABLE IF NOT EXISTS sales (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	sale_date DATE NOT NULL,
	daily_ordinal INT NOT NULL,
	total NUMERIC(12,2) NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	customer_id TEXT,
	customer_name TEXT NOT NULL DEFAULT '',
	incomplete BOOLEAN NOT NULL DEFAULT FALSE,
	voided BOOLEAN NOT NULL DEFAULT FALSE,
	voided_at TIMESTAMPTZ,
	note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_sales_daily_ordinal ON sales (tenant_id, sale_date, daily_ordinal);
CREATE INDEX IF NOT EXISTS idx_sales_tenant_date ON sales (tenant_id, sale_date);

CREATE TABLE IF NOT EXISTS sale_items (
	id TEXT PRIMARY KEY,
	sale_id TEXT NOT NULL REFERENCES sales(id),
	position INT NOT NULL DEFAULT 0,
	product_id TEXT,
	product_label TEXT NOT NULL,
	unit_price NUMERIC(12,2) NOT NULL,
	quantity NUMERIC(12,3) NOT NULL,
	subtotal NUMERIC(12,2) NOT NULL,
	unit_label TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id);

CREATE TABLE IF NOT EXISTS sale_payments (
	id TEXT PRIMARY KEY,
	sale_id TEXT NOT NULL REFERENCES sales(id),
	position INT NOT NULL DEFAULT 0,
	method_id TEXT NOT NULL,
	method_name TEXT NOT NULL,
	amount NUMERIC(12,2) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sale_payments_sale ON sale_payments (sale_id);

CREATE TABLE IF NOT EXISTS user_accounts (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

INSERT INTO payment_methods (id, name) VALUES
	('pm-efectivo', 'Efectivo'),
	('pm-mercadopago', 'MercadoPago'),
	('pm-billetera', 'Billetera Digital'),
	('pm-tarjeta', 'Tarjeta'),
	('pm-transferencia', 'Transferencia')
ON CONFLICT (id) DO NOTHING;
`
