package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/webshop"
)

// ProductsResult is a filtered product listing.
type ProductsResult struct {
	Products []webshop.Product `json:"products"`
}

// WebshopProducts lists the shop's products, optionally narrowed to one
// campus and department. Filters come from the body or the query string.
func WebshopProducts(ctx context.Context, d *Deps, req Request) (any, error) {
	var f webshop.Filter
	if len(bytes.TrimSpace(req.Body)) > 0 {
		if err := req.Decode(&f); err != nil {
			return nil, err
		}
	}
	if f.Campus == "" {
		f.Campus = req.Query["campus"]
	}
	if f.Department == "" {
		f.Department = req.Query["department"]
	}

	products, err := d.Shop.Products(ctx, f)
	if err != nil {
		return nil, err
	}
	d.Log.InfoContext(ctx, "products listed", "count", len(products), "campus", f.Campus, "department", f.Department)
	return ProductsResult{Products: products}, nil
}

// ProductResult is one product.
type ProductResult struct {
	Product webshop.Product `json:"product"`
}

// WebshopProduct fetches one product. The body is the product id, bare or
// as {"id": ...}.
func WebshopProduct(ctx context.Context, d *Deps, req Request) (any, error) {
	id, err := productID(req)
	if err != nil {
		return nil, err
	}
	p, err := d.Shop.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	return ProductResult{Product: p}, nil
}

func productID(req Request) (int, error) {
	text, err := req.Text()
	if err != nil {
		return 0, err
	}
	if text == "" {
		text = req.Query["id"]
	}
	if text != "" && text[0] != '{' {
		id, err := strconv.Atoi(text)
		if err != nil {
			return 0, apperr.Validation("invalid product id %q", text)
		}
		return id, nil
	}

	var r struct {
		ID        json.Number `json:"id"`
		ProductID json.Number `json:"productId"`
	}
	if text != "" {
		if err := req.Decode(&r); err != nil {
			return 0, err
		}
	}
	raw := r.ID
	if raw == "" {
		raw = r.ProductID
	}
	if raw == "" {
		return 0, apperr.Validation("missing required parameters: id")
	}
	id, err := raw.Int64()
	if err != nil {
		return 0, apperr.Validation("invalid product id %q", raw)
	}
	return int(id), nil
}
