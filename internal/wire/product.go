package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/larek/internal/domain/product"
)

// EncodeProduct writes a catalog item. imageBase is prepended to the stored
// image path; price is null for items that are not for sale.
func EncodeProduct(e *jx.Encoder, p product.Product, imageBase string) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("image")
	e.Str(imageBase + p.Image)
	e.FieldStart("category")
	e.Str(p.Category.String())
	e.FieldStart("price")
	encodeNullDecimal(e, p.Price)
	e.ObjEnd()
}

// EncodeProductList writes the catalog listing envelope.
func EncodeProductList(e *jx.Encoder, items []product.Product, imageBase string) {
	e.ObjStart()
	e.FieldStart("total")
	e.Int(len(items))
	e.FieldStart("items")
	e.ArrStart()
	for _, p := range items {
		EncodeProduct(e, p, imageBase)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// DecodeProduct reads a catalog item. The category is kept as given; call
// Validate to reject unknown labels.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	if err := decodeObj(d, "product", func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "title":
			p.Title, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		case "category":
			var s string
			s, err = d.Str()
			p.Category = product.Category(s)
		case "price":
			p.Price, err = decodeNullDecimal(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return badRequest(err, key)
		}
		return nil
	}); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

// DecodeProducts reads a JSON array of catalog items.
func DecodeProducts(d *jx.Decoder) ([]product.Product, error) {
	var out []product.Product
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	}); err != nil {
		if errors.Is(err, ErrBadRequest) {
			return nil, err
		}
		return nil, badRequest(err, "products")
	}
	return out, nil
}

// EncodeBasketLine writes the basket view of a product.
func EncodeBasketLine(e *jx.Encoder, l product.BasketLine) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(l.ID)
	e.FieldStart("title")
	e.Str(l.Title)
	e.FieldStart("price")
	encodeNullDecimal(e, l.Price)
	e.ObjEnd()
}
