package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/forms"
	"lojaju/backend/internal/pricing"
	"lojaju/backend/internal/store"
)

// Inputs arrive as strings from form fields or JSON and are parsed by the
// forms package before reaching the service.

type customerInput struct {
	Name  string `json:"name" form:"name"`
	Phone string `json:"phone" form:"phone"`
}

type productInput struct {
	Type      string `json:"type" form:"type"`
	Color     string `json:"color" form:"color"`
	Size      string `json:"size" form:"size"`
	CostPrice string `json:"cost_price" form:"cost_price"`
	SalePrice string `json:"sale_price" form:"sale_price"`
	Quantity  string `json:"quantity" form:"quantity"`
}

func (in productInput) form() forms.ProductForm {
	return forms.ProductForm{
		Type:      in.Type,
		Color:     in.Color,
		Size:      in.Size,
		CostPrice: in.CostPrice,
		SalePrice: in.SalePrice,
		Quantity:  in.Quantity,
	}
}

type promotionInput struct {
	PromotionalPrice string `json:"promotional_price" form:"promotional_price"`
}

type draftCustomerInput struct {
	CustomerCode string `json:"customer_code" form:"customer_code"`
}

type draftItemInput struct {
	ProductID string `json:"product_id" form:"product_id"`
	Quantity  string `json:"quantity" form:"quantity"`
}

type paymentInput struct {
	SaleID string `json:"sale_id" form:"sale_id"`
	Amount string `json:"amount" form:"amount"`
}

func bind(c *gin.Context, dest any) error {
	if err := c.ShouldBind(dest); err != nil {
		return fmt.Errorf("%w: malformed request body", store.ErrValidation)
	}
	return nil
}

func (a *API) handleListCustomers(c *gin.Context) {
	customers, err := a.service.ListCustomers(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (a *API) handleRegisterCustomer(c *gin.Context) {
	var in customerInput
	if err := bind(c, &in); err != nil {
		a.writeError(c, err)
		return
	}
	req, err := forms.CustomerForm{Name: in.Name, Phone: in.Phone}.Request()
	if err != nil {
		a.writeError(c, err)
		return
	}
	customer, err := a.service.RegisterCustomer(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (a *API) handleGetCustomer(c *gin.Context) {
	code, err := forms.ParseID("code", c.Param("code"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	customer, err := a.service.GetCustomer(c.Request.Context(), code)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (a *API) handleDeleteCustomer(c *gin.Context) {
	code, err := forms.ParseID("code", c.Param("code"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	if err := a.service.DeleteCustomer(c.Request.Context(), code); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleCustomerOutstanding(c *gin.Context) {
	code, err := forms.ParseID("code", c.Param("code"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	outstanding, err := a.service.OutstandingForCustomer(c.Request.Context(), code)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer_code": code, "outstanding": outstanding})
}

func (a *API) handleListProducts(c *gin.Context) {
	products, err := a.service.ListProducts(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (a *API) handleRegisterProduct(c *gin.Context) {
	var in productInput
	if err := bind(c, &in); err != nil {
		a.writeError(c, err)
		return
	}
	req, err := in.form().Request()
	if err != nil {
		a.writeError(c, err)
		return
	}
	product, err := a.service.RegisterProduct(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (a *API) handleGetProduct(c *gin.Context) {
	id, err := forms.ParseID("id", c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	product, err := a.service.GetProduct(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product":         product,
		"effective_price": pricing.EffectivePrice(product),
	})
}

func (a *API) handleUpdateProduct(c *gin.Context) {
	id, err := forms.ParseID("id", c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	var in productInput
	if err := bind(c, &in); err != nil {
		a.writeError(c, err)
		return
	}
	req, err := in.form().UpdateRequest()
	if err != nil {
		a.writeError(c, err)
		return
	}
	product, err := a.service.UpdateProduct(c.Request.Context(), id, req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (a *API) handleDeleteProduct(c *gin.Context) {
	id, err := forms.ParseID("id", c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	if err := a.service.DeleteProduct(c.Request.Context(), id); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleSetPromotion(c *gin.Context) {
	id, err := forms.ParseID("id", c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	var in promotionInput
	if err := bind(c, &in); err != nil {
		a.writeError(c, err)
		return
	}
	price, err := forms.ParseMoney("promotional_price", in.PromotionalPrice)
	if err != nil {
		a.writeError(c, err)
		return
	}
	product, err := a.service.SetPromotion(c.Request.Context(), id, price)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (a *API) handleClearPromotion(c *gin.Context) {
	id, err := forms.ParseID("id", c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	product, err := a.service.ClearPromotion(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (a *API) handleListPromotions(c *gin.Context) {
	products, err := a.service.ListPromotions(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (a *API) handleOpenDraft(c *gin.Context) {
	c.JSON(http.StatusCreated, a.service.OpenDraft())
}

func (a *API) handleGetDraft(c *gin.Context) {
	view, err := a.service.DraftView(c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) handleDiscardDraft(c *gin.Context) {
	if err := a.service.DiscardDraft(c.Param("id")); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleSelectDraftCustomer(c *gin.Context) {
	var in draftCustomerInput
	if err := bind(c, &in); err != nil {
		a.writeError(c, err)
		return
	}
	code, err := forms.ParseID("customer_code", in.CustomerCode)
	if err != nil {
		a.writeError(c, err)
		return
	}
	view, err := a.service.SelectDraftCustomer(c.Request.Context(), c.Param("id"), code)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) handleAddDraftItem(c *gin.Context) {
	var in draftItemInput
	if err := bind(c, &in); err != nil {
		a.writeError(c, err)
		return
	}
	productID, err := forms.ParseID("product_id", in.ProductID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	qty, err := forms.ParseQuantity("quantity", in.Quantity)
	if err != nil {
		a.writeError(c, err)
		return
	}
	view, err := a.service.AddDraftItem(c.Request.Context(), c.Param("id"), productID, qty)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) handleEditDraftItem(c *gin.Context) {
	productID, err := forms.ParseID("product", c.Param("product"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	var in draftItemInput
	if err := bind(c, &in); err != nil {
		a.writeError(c, err)
		return
	}
	qty, err := forms.ParseQuantity("quantity", in.Quantity)
	if err != nil {
		a.writeError(c, err)
		return
	}
	view, err := a.service.EditDraftItem(c.Request.Context(), c.Param("id"), productID, qty)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) handleRemoveDraftItem(c *gin.Context) {
	productID, err := forms.ParseID("product", c.Param("product"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	view, err := a.service.RemoveDraftItem(c.Param("id"), productID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) handleClearDraft(c *gin.Context) {
	view, err := a.service.ClearDraft(c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) handleCommitDraft(c *gin.Context) {
	sale, err := a.service.CommitDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (a *API) handleListSales(c *gin.Context) {
	customer, err := forms.ParseOptionalID("customer", c.Query("customer"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	from, to, err := forms.DateRange(c.Query("from"), c.Query("to"), a.service.Location())
	if err != nil {
		a.writeError(c, err)
		return
	}
	sales, err := a.service.ListSales(c.Request.Context(), domain.SaleFilter{
		CustomerCode: customer,
		From:         from,
		To:           to,
		Limit:        parsePositiveLimit(c.Query("limit"), 100, 500),
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (a *API) handleGetSale(c *gin.Context) {
	id, err := forms.ParseID("id", c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	sale, err := a.service.GetSale(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (a *API) handleSaleBalance(c *gin.Context) {
	id, err := forms.ParseID("id", c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	balance, err := a.service.Balance(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (a *API) handleRegisterPayment(c *gin.Context) {
	var in paymentInput
	if err := bind(c, &in); err != nil {
		a.writeError(c, err)
		return
	}
	req, err := forms.PaymentForm{SaleID: in.SaleID, Amount: in.Amount}.Request()
	if err != nil {
		a.writeError(c, err)
		return
	}
	payment, err := a.service.RegisterPayment(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	// The payment is already stored; a failed balance read must not invite a
	// retry that would record it twice.
	body := gin.H{"payment": payment}
	balance, err := a.service.Balance(c.Request.Context(), payment.SaleID)
	if err != nil {
		a.logger.Warn("balance lookup after payment failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Int64("payment_id", payment.ID),
			zap.Error(err),
		)
	} else {
		body["balance"] = balance
	}
	c.JSON(http.StatusCreated, body)
}

func (a *API) handleListPayments(c *gin.Context) {
	customer, err := forms.ParseOptionalID("customer", c.Query("customer"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	from, to, err := forms.DateRange(c.Query("from"), c.Query("to"), a.service.Location())
	if err != nil {
		a.writeError(c, err)
		return
	}
	payments, err := a.service.PaymentsInRange(c.Request.Context(), domain.PaymentFilter{CustomerCode: customer, From: from, To: to})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (a *API) handleListReceivables(c *gin.Context) {
	customer, err := forms.ParseOptionalID("customer", c.Query("customer"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	receivables, err := a.service.ListReceivables(c.Request.Context(), customer)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receivables": receivables})
}

func (a *API) handleOutstandingTotal(c *gin.Context) {
	total, err := a.service.OutstandingTotal(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outstanding": total})
}
