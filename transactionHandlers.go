package main

import (
	"net/http"
	"strconv"

	"github.com/casahogar/cashbox_backend/middlewares"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/gin-gonic/gin"
)

func listSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, after, ok := pageArgs(c)
		if !ok {
			return
		}
		from, ok := queryDate(c, "from")
		if !ok {
			return
		}
		to, ok := queryDate(c, "to")
		if !ok {
			return
		}
		nurseId, ok := queryInt(c, "nurse_id")
		if !ok {
			return
		}
		page, err := models.PaginateSales(c.Request.Context(), models.SaleFilter{From: from, To: to, NurseId: nurseId}, limit, after)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		sale, err := models.GetSale(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sale)
	}
}

func createSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSale
		if !bindJSON(c, &input) {
			return
		}
		// retried submits carry the same Idempotency-Key and get the first sale back
		sale, err := models.CreateSaleOnce(c.Request.Context(), middlewares.ActorFromContext(c), c.GetHeader("Idempotency-Key"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sale)
	}
}

// Sales are never edited or removed, whoever asks and whatever the id.
// The id is not validated so a malformed one still gets the 403.
func updateSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		_, err := models.UpdateSale(c.Request.Context(), middlewares.ActorFromContext(c), id, nil)
		respondError(c, err)
	}
}

func deleteSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		_, err := models.DeleteSale(c.Request.Context(), middlewares.ActorFromContext(c), id)
		respondError(c, err)
	}
}

func listExpensesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, after, ok := pageArgs(c)
		if !ok {
			return
		}
		from, ok := queryDate(c, "from")
		if !ok {
			return
		}
		to, ok := queryDate(c, "to")
		if !ok {
			return
		}
		page, err := models.PaginateExpenses(c.Request.Context(), models.ExpenseFilter{From: from, To: to}, limit, after)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		expense, err := models.GetExpense(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func createExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewExpense
		if !bindJSON(c, &input) {
			return
		}
		expense, err := models.CreateExpense(c.Request.Context(), middlewares.ActorFromContext(c), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, expense)
	}
}

func updateExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.UpdateExpenseInput
		if !bindJSON(c, &input) {
			return
		}
		expense, err := models.UpdateExpense(c.Request.Context(), middlewares.ActorFromContext(c), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func deleteExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		expense, err := models.DeleteExpense(c.Request.Context(), middlewares.ActorFromContext(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func listCapitalInjectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, after, ok := pageArgs(c)
		if !ok {
			return
		}
		page, err := models.PaginateCapitalInjections(c.Request.Context(), limit, after)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func capitalInjectionsByDateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := paramDate(c, "date")
		if !ok {
			return
		}
		result, err := models.GetCapitalInjectionsByDate(c.Request.Context(), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getCapitalInjectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		injection, err := models.GetCapitalInjection(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, injection)
	}
}

func createCapitalInjectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCapitalInjection
		if !bindJSON(c, &input) {
			return
		}
		injection, err := models.CreateCapitalInjection(c.Request.Context(), middlewares.ActorFromContext(c), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, injection)
	}
}

func updateCapitalInjectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.UpdateCapitalInjectionInput
		if !bindJSON(c, &input) {
			return
		}
		injection, err := models.UpdateCapitalInjection(c.Request.Context(), middlewares.ActorFromContext(c), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, injection)
	}
}

func deleteCapitalInjectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		injection, err := models.DeleteCapitalInjection(c.Request.Context(), middlewares.ActorFromContext(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, injection)
	}
}

func listWasteRecordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := queryDate(c, "date")
		if !ok {
			return
		}
		productId, ok := queryInt(c, "product_id")
		if !ok {
			return
		}
		records, err := models.ListWasteRecords(c.Request.Context(), models.WasteRecordFilter{Date: date, ProductId: productId})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func getWasteRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		record, err := models.GetWasteRecord(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func createWasteRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewWasteRecord
		if !bindJSON(c, &input) {
			return
		}
		record, err := models.CreateWasteRecord(c.Request.Context(), middlewares.ActorFromContext(c), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

func deleteWasteRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		record, err := models.DeleteWasteRecord(c.Request.Context(), middlewares.ActorFromContext(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}
