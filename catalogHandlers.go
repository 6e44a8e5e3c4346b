package main

import (
	"net/http"

	"github.com/casahogar/cashbox_backend/middlewares"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/gin-gonic/gin"
)

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.ListProducts(c.Request.Context(), c.Query("include_inactive") == "true")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func getProductStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		stock, err := models.GetProductStock(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": id, "stock": stock})
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if !bindJSON(c, &input) {
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), middlewares.ActorFromContext(c), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.UpdateProductInput
		if !bindJSON(c, &input) {
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), middlewares.ActorFromContext(c), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func deleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		product, err := models.DeleteProduct(c.Request.Context(), middlewares.ActorFromContext(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func restoreProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		product, err := models.RestoreProduct(c.Request.Context(), middlewares.ActorFromContext(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func restockProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.RestockInput
		if !bindJSON(c, &input) {
			return
		}
		product, err := models.RestockProduct(c.Request.Context(), middlewares.ActorFromContext(c), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func listNursesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			nurses []*models.Nurse
			err    error
		)
		if c.Query("all") == "true" {
			nurses, err = models.ListNurses(c.Request.Context())
		} else {
			nurses, err = models.ListActiveNurses(c.Request.Context())
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, nurses)
	}
}

func getNurseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		nurse, err := models.GetNurse(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, nurse)
	}
}

func createNurseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewNurse
		if !bindJSON(c, &input) {
			return
		}
		nurse, err := models.CreateNurse(c.Request.Context(), middlewares.ActorFromContext(c), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, nurse)
	}
}

func updateNurseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.NewNurse
		if !bindJSON(c, &input) {
			return
		}
		nurse, err := models.UpdateNurse(c.Request.Context(), middlewares.ActorFromContext(c), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, nurse)
	}
}

func toggleNurseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		nurse, err := models.ToggleNurseActive(c.Request.Context(), middlewares.ActorFromContext(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, nurse)
	}
}

func deleteNurseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		nurse, err := models.DeleteNurse(c.Request.Context(), middlewares.ActorFromContext(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, nurse)
	}
}

func restoreNurseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		nurse, err := models.RestoreNurse(c.Request.Context(), middlewares.ActorFromContext(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, nurse)
	}
}
