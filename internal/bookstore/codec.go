package bookstore

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookshop-checkout/internal/domain/address"
	"github.com/xenking/bookshop-checkout/internal/domain/cart"
	"github.com/xenking/bookshop-checkout/internal/domain/order"
	"github.com/xenking/bookshop-checkout/internal/domain/pricing"
)

// Timestamps come without a zone; they are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// decodeErrorMessage extracts "error" from a {"error": "..."} body. Anything
// else yields "".
func decodeErrorMessage(data []byte) string {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return ""
	}
	var msg string
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		s, err := optStr(d)
		msg = s
		return err
	}); err != nil {
		return ""
	}
	return msg
}

// optStr reads a string that may be null.
func optStr(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	default:
		return "", errors.Errorf("unexpected %s, want string", d.Next())
	}
}

// optInt reads an integer that may be null.
func optInt(d *jx.Decoder) (int, error) {
	if d.Next() == jx.Null {
		return 0, d.Null()
	}
	return d.Int()
}

// optBool reads a boolean that may be null.
func optBool(d *jx.Decoder) (bool, error) {
	if d.Next() == jx.Null {
		return false, d.Null()
	}
	return d.Bool()
}

// decodeDecimal reads a money amount sent as a JSON number or string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, errors.Errorf("unexpected %s, want number", d.Next())
	}
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := optStr(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("parse time %q", s)
}

func decodeAddress(d *jx.Decoder) (address.Address, error) {
	var a address.Address
	if d.Next() == jx.Null {
		return a, d.Null()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "street":
			a.Street, err = optStr(d)
		case "city":
			a.City, err = optStr(d)
		case "postal_code":
			a.PostalCode, err = optStr(d)
		case "country":
			a.Country, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return a, err
}

func encodeAddress(e *jx.Encoder, a address.Address) {
	e.ObjStart()
	e.FieldStart("street")
	e.Str(a.Street)
	e.FieldStart("city")
	e.Str(a.City)
	e.FieldStart("postal_code")
	e.Str(a.PostalCode)
	e.FieldStart("country")
	e.Str(a.Country)
	e.ObjEnd()
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

// encodeDraft renders the POST /api/orders body.
func encodeDraft(d *order.Draft) []byte {
	var e jx.Encoder
	e.ObjStart()

	e.FieldStart("cart_items")
	e.ArrStart()
	for _, it := range d.Items {
		e.ObjStart()
		e.FieldStart("isbn")
		e.Str(it.ISBN)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		encodeMoney(&e, it.Price)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("email")
	e.Str(d.Email)
	e.FieldStart("shipping_address")
	encodeAddress(&e, d.Shipping)
	e.FieldStart("billing_address")
	encodeAddress(&e, d.Billing)
	e.FieldStart("payment_method")
	e.Str(string(d.Payment))
	e.FieldStart("payment_fee")
	encodeMoney(&e, d.Fee)
	e.FieldStart("total_price")
	encodeMoney(&e, d.Total)
	e.FieldStart("gdpr_consent")
	e.Bool(d.GDPRConsent)

	e.ObjEnd()
	return e.Bytes()
}

func encodeCredentials(username, password string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("username")
	e.Str(username)
	e.FieldStart("password")
	e.Str(password)
	e.ObjEnd()
	return e.Bytes()
}

// book is a cart entry as the server sends it.
type book struct {
	item    cart.LineItem
	visible bool
}

func decodeBook(d *jx.Decoder) (book, error) {
	b := book{visible: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "ISBN10":
			b.item.ISBN10, err = optStr(d)
		case "ISBN13":
			b.item.ISBN13, err = optStr(d)
		case "Title":
			b.item.Title, err = optStr(d)
		case "Author":
			b.item.Author, err = optStr(d)
		case "Cover_Image":
			b.item.CoverImage, err = optStr(d)
		case "Price":
			b.item.UnitPrice, err = decodeDecimal(d)
		case "quantity":
			b.item.Quantity, err = optInt(d)
		case "is_visible":
			if d.Next() == jx.Null {
				return d.Null()
			}
			b.visible, err = d.Bool()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return b, err
}

// decodeCartPage decodes GET /api/shoppingcart. Hidden books are dropped.
func decodeCartPage(data []byte, page int) (*cart.Page, error) {
	p := &cart.Page{Number: page}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "books":
			err = d.Arr(func(d *jx.Decoder) error {
				b, err := decodeBook(d)
				if err != nil {
					return err
				}
				if b.visible {
					p.Items = append(p.Items, b.item)
				}
				return nil
			})
		case "page":
			var n int
			if n, err = optInt(d); err == nil && n > 0 {
				p.Number = n
			}
		case "total_pages":
			p.TotalPages, err = optInt(d)
		case "message":
			p.Message, err = optStr(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cart page")
	}
	return p, nil
}

func decodeToggle(data []byte) (*cart.ToggleResult, error) {
	var r cart.ToggleResult
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "is_in_cart":
			r.InCart, err = optBool(d)
		case "message":
			r.Message, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode toggle")
	}
	return &r, nil
}

func decodeCartStatus(data []byte) (bool, error) {
	var inCart bool
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "is_in_cart" {
			return d.Skip()
		}
		var err error
		inCart, err = optBool(d)
		return err
	})
	if err != nil {
		return false, errors.Wrap(err, "decode cart status")
	}
	return inCart, nil
}

func decodeHistoryItem(d *jx.Decoder) (order.HistoryItem, error) {
	var it order.HistoryItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "book_isbn10":
			it.ISBN10, err = optStr(d)
		case "title":
			it.Title, err = optStr(d)
		case "quantity":
			it.Quantity, err = optInt(d)
		case "price_per_item":
			it.PricePerItem, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return it, err
}

func decodeOrder(d *jx.Decoder) (*order.Order, error) {
	var o order.Order
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Int()
		case "created_at":
			o.CreatedAt, err = decodeTime(d)
		case "email":
			o.Email, err = optStr(d)
		case "shipping_address":
			o.Shipping, err = decodeAddress(d)
		case "billing_address":
			o.Billing, err = decodeAddress(d)
		case "payment_method":
			var s string
			s, err = optStr(d)
			o.Payment = pricing.Method(s)
		case "payment_fee":
			o.Fee, err = decodeDecimal(d)
		case "total_price":
			o.Total, err = decodeDecimal(d)
		case "status":
			var s string
			s, err = optStr(d)
			o.Status = order.Status(s)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeHistoryItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// decodeConfirmation decodes the POST /api/orders response
// {"message": ..., "order": {...}}.
func decodeConfirmation(data []byte) (*order.Confirmation, error) {
	var c order.Confirmation
	var seen bool
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message":
			var err error
			c.Message, err = optStr(d)
			return err
		case "order":
			o, err := decodeOrder(d)
			if err != nil {
				return errors.Wrap(err, "order")
			}
			c.OrderID = o.ID
			seen = true
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order confirmation")
	}
	if !seen {
		return nil, errors.New("decode order confirmation: missing order")
	}
	return &c, nil
}

func decodeOrderList(data []byte) ([]order.Order, error) {
	var out []order.Order
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "orders" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			o, err := decodeOrder(d)
			if err != nil {
				return err
			}
			out = append(out, *o)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return out, nil
}

func decodeOrderDetail(data []byte) (*order.Order, error) {
	var o *order.Order
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "order" {
			return d.Skip()
		}
		var err error
		o, err = decodeOrder(d)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	if o == nil {
		return nil, errors.New("decode order: missing order")
	}
	return o, nil
}

func decodeUser(d *jx.Decoder) (*User, error) {
	var u User
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			u.ID, err = d.Int()
		case "username":
			u.Username, err = optStr(d)
		case "name":
			u.Name, err = optStr(d)
		case "email":
			u.Email, err = optStr(d)
		case "personal_address":
			u.Shipping, err = decodeAddress(d)
		case "billing_address":
			u.Billing, err = decodeAddress(d)
		case "gdpr_consent":
			u.GDPRConsent, err = optBool(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// decodeUserEnvelope decodes {"user": {...}} as sent by login and profile.
func decodeUserEnvelope(data []byte) (*User, error) {
	var u *User
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "user" {
			return d.Skip()
		}
		var err error
		u, err = decodeUser(d)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	if u == nil {
		return nil, errors.New("decode user: missing user")
	}
	return u, nil
}
