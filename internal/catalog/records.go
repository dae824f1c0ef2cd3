package catalog

import "go-crop-inspector/pkg/models"

func rec(freq models.MonitoringFrequency, risk models.RiskLevel, actions, preventive []string) models.RecommendationRecord {
	return models.RecommendationRecord{
		ImmediateActions:    actions,
		PreventiveMeasures:  preventive,
		MonitoringFrequency: freq,
		RiskLevel:           risk,
	}
}

func defaultRecords() map[string]models.RecommendationRecord {
	return map[string]models.RecommendationRecord{
		"healthy": rec(models.MonitorWeekly, models.RiskLow,
			[]string{"Continue regular monitoring", "Maintain current care routine"},
			[]string{"Regular watering schedule", "Proper fertilization", "Adequate spacing between plants"}),
		"early_blight": rec(models.MonitorDaily, models.RiskMedium,
			[]string{"Remove infected leaves immediately", "Improve air circulation", "Apply fungicide containing chlorothalonil or mancozeb"},
			[]string{"Plant resistant varieties", "Maintain proper spacing", "Avoid overhead watering", "Mulch around plants"}),
		"late_blight": rec(models.MonitorDaily, models.RiskHigh,
			[]string{"Remove and destroy infected plants", "Improve drainage", "Apply copper-based fungicide", "Isolate affected area"},
			[]string{"Use disease-free seeds", "Implement crop rotation", "Maintain proper spacing", "Monitor weather conditions"}),
		"leaf_mold": rec(models.MonitorDaily, models.RiskMedium,
			[]string{"Reduce humidity levels", "Improve ventilation", "Remove infected leaves", "Apply appropriate fungicide"},
			[]string{"Maintain proper spacing", "Use resistant varieties", "Monitor humidity levels", "Regular pruning"}),
		"septoria_leaf_spot": rec(models.MonitorWeekly, models.RiskMedium,
			[]string{"Remove infected leaves", "Avoid overhead watering", "Apply fungicide", "Improve air circulation"},
			[]string{"Use disease-free seeds", "Implement crop rotation", "Maintain proper spacing", "Regular pruning"}),
		"spider_mites": rec(models.MonitorDaily, models.RiskMedium,
			[]string{"Increase humidity", "Apply insecticidal soap", "Introduce natural predators", "Remove heavily infested leaves"},
			[]string{"Regular monitoring", "Maintain proper humidity", "Avoid over-fertilization", "Keep plants well-watered"}),
		"target_spot": rec(models.MonitorWeekly, models.RiskMedium,
			[]string{"Remove infected leaves", "Improve air circulation", "Apply fungicide", "Reduce leaf wetness"},
			[]string{"Use resistant varieties", "Maintain proper spacing", "Avoid overhead watering", "Regular pruning"}),
		"yellow_leaf_curl_virus": rec(models.MonitorDaily, models.RiskHigh,
			[]string{"Remove infected plants", "Control whitefly population", "Use virus-free seeds", "Implement physical barriers"},
			[]string{"Use resistant varieties", "Monitor whitefly populations", "Implement crop rotation", "Use reflective mulches"}),
		"mosaic_virus": rec(models.MonitorDaily, models.RiskHigh,
			[]string{"Remove infected plants", "Control aphid population", "Use virus-free seeds", "Implement physical barriers"},
			[]string{"Use resistant varieties", "Monitor aphid populations", "Implement crop rotation", "Use reflective mulches"}),
		"powdery_mildew": rec(models.MonitorWeekly, models.RiskMedium,
			[]string{"Remove infected leaves", "Improve air circulation", "Apply sulfur-based fungicide", "Reduce humidity"},
			[]string{"Use resistant varieties", "Maintain proper spacing", "Regular pruning", "Monitor humidity levels"}),
		"downy_mildew": rec(models.MonitorDaily, models.RiskHigh,
			[]string{"Remove infected leaves", "Improve air circulation", "Apply appropriate fungicide", "Reduce leaf wetness"},
			[]string{"Use resistant varieties", "Avoid overhead watering", "Maintain proper spacing", "Monitor weather conditions"}),
		"bacterial_spot": rec(models.MonitorDaily, models.RiskMedium,
			[]string{"Remove infected leaves", "Apply copper-based bactericide", "Improve air circulation", "Reduce leaf wetness"},
			[]string{"Use disease-free seeds", "Avoid overhead watering", "Maintain proper spacing", "Regular pruning"}),
		"bacterial_wilt": rec(models.MonitorDaily, models.RiskHigh,
			[]string{"Remove infected plants", "Improve drainage", "Apply appropriate bactericide", "Isolate affected area"},
			[]string{"Use disease-free seeds", "Implement crop rotation", "Maintain proper drainage", "Monitor soil health"}),
		"fusarium_wilt": rec(models.MonitorDaily, models.RiskHigh,
			[]string{"Remove infected plants", "Improve soil drainage", "Apply appropriate fungicide", "Isolate affected area"},
			[]string{"Use resistant varieties", "Implement crop rotation", "Maintain proper drainage", "Monitor soil health"}),
		"root_rot": rec(models.MonitorDaily, models.RiskHigh,
			[]string{"Remove infected plants", "Improve drainage", "Apply appropriate fungicide", "Isolate affected area"},
			[]string{"Use disease-free soil", "Implement crop rotation", "Maintain proper drainage", "Monitor soil health"}),
	}
}
